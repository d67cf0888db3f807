package stf

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// The markdown protocol is for whole transcripts rather than live streams:
// fenced code blocks preceded by a backtick path hint become file writes,
// and the "diff", "delete" and "rename" fence dialects become edits, deletes
// and moves. Decoding is a batch pass over the full buffer with goldmark, so
// the Decoder implementation simply accumulates until Finish.

type CodeBlock struct {
	Hint    string
	Lang    string
	Content string
}

var pathInHintRegex = regexp.MustCompile("^`([^`\n]+)`")

// ExtractCodeBlocks parses markdown and returns every fenced code block with
// its info string and the text of the paragraph directly above it.
func ExtractCodeBlocks(source []byte) ([]CodeBlock, error) {
	var blocks []CodeBlock
	parser := goldmark.DefaultParser()
	root := parser.Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var block CodeBlock
		if fenced.Info != nil {
			block.Lang = string(fenced.Info.Text(source))
		}

		var content bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		block.Content = content.String()

		if prev := fenced.PreviousSibling(); prev != nil {
			if p, ok := prev.(*ast.Paragraph); ok {
				block.Hint = strings.TrimSpace(string(p.Text(source)))
			}
		}

		blocks = append(blocks, block)
		return ast.WalkSkipChildren, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}

	return blocks, nil
}

// ExtractPathFromHint pulls a path out of a `path/to/file` hint line.
func ExtractPathFromHint(hint string) string {
	if match := pathInHintRegex.FindStringSubmatch(strings.TrimSpace(hint)); len(match) > 1 {
		path := strings.TrimSpace(match[1])
		if !strings.Contains(path, " ") {
			return path
		}
	}
	return ""
}

// SourceLookup supplies current file content for diff application; ok=false
// means the file does not exist yet.
type SourceLookup func(path string) (string, bool)

type markdownDecoder struct {
	buf    strings.Builder
	lookup SourceLookup
	done   bool
}

func newMarkdownDecoder() *markdownDecoder {
	return &markdownDecoder{}
}

// NewMarkdownDecoder returns a batch decoder that resolves diff blocks
// against the given source lookup.
func NewMarkdownDecoder(lookup SourceLookup) Decoder {
	return &markdownDecoder{lookup: lookup}
}

func (d *markdownDecoder) Feed(chunk string) []Event {
	d.buf.WriteString(chunk)
	return nil
}

func (d *markdownDecoder) Finish() []Event {
	if d.done {
		return nil
	}
	d.done = true

	blocks, err := ExtractCodeBlocks([]byte(d.buf.String()))
	if err != nil {
		return nil
	}

	var evs []Event
	for _, b := range blocks {
		switch b.Lang {
		case "diff":
			evs = append(evs, d.diffEvents(b)...)
		case "delete":
			for _, line := range strings.Split(b.Content, "\n") {
				path := strings.TrimSpace(line)
				if path == "" {
					continue
				}
				path, reason := splitTrailingReason(path)
				evs = append(evs, Event{Kind: EventDelete, RawPath: path, Path: path, Reason: reason})
			}
		case "rename":
			for _, line := range strings.Split(b.Content, "\n") {
				line, reason := splitTrailingReason(strings.TrimSpace(line))
				parts := strings.Fields(line)
				if len(parts) != 2 {
					continue
				}
				evs = append(evs, Event{Kind: EventMove, RawPath: parts[0], Path: parts[0],
					ToPath: parts[1], Reason: reason})
			}
		default:
			path := ExtractPathFromHint(b.Hint)
			if path == "" {
				continue
			}
			content := strings.TrimRight(b.Content, "\n")
			evs = append(evs,
				Event{Kind: EventStart, RawPath: path, Path: path, Mode: ModeCreate},
				Event{Kind: EventChunk, RawPath: path, Path: path, Text: content},
				Event{Kind: EventEnd, RawPath: path, Path: path, Mode: ModeCreate, CursorLine: -1})
		}
	}
	return evs
}

// splitTrailingReason separates an optional "# reason text" comment from a
// delete/rename line.
func splitTrailingReason(line string) (string, string) {
	if idx := strings.Index(line, "#"); idx >= 0 {
		return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:])
	}
	return line, ""
}

func (d *markdownDecoder) diffEvents(b CodeBlock) []Event {
	raw := strings.Trim(b.Content, "\n")
	path := ExtractPathFromDiff(raw)
	if path == "" {
		return nil
	}

	var sourceLines []string
	if d.lookup != nil {
		if src, ok := d.lookup(path); ok && src != "" {
			sourceLines = strings.Split(strings.TrimSuffix(src, "\n"), "\n")
		}
	}

	corrected, err := CorrectDiffHunks(sourceLines, raw, path)
	if err != nil {
		return nil
	}
	applied := ApplyUnifiedDiff(sourceLines, corrected)

	text := strings.Join(applied, "\n")
	return []Event{
		{Kind: EventStart, RawPath: path, Path: path, Mode: ModeEdit},
		{Kind: EventChunk, RawPath: path, Path: path, Text: text},
		{Kind: EventEnd, RawPath: path, Path: path, Mode: ModeEdit, CursorLine: -1},
	}
}
