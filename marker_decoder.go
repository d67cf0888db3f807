package stf

import "strings"

// Marker protocol surface: bracket-delimited tokens, case sensitive,
// attributes separated by "|".
//
//	[start-file: src/app.js]
//	[patch-file: src/app.js | mode: replace | reason: ...]
//	[edit-node: src/app.js | reason: ...]
//	[end-file]
//	[delete-file: old.js | reason: unused]
//	[move-file: a.js -> b.js | reason: route cleanup]
//	[search] ... [replace] ... [end-edit]
//
// Bracketed text that is not a known marker is literal content. Content
// between markers inside an open file streams out as chunks; no escaping is
// applied, so chunks can be large slices.

const maxMarkerLen = 256

type markerSub int

const (
	subNone markerSub = iota
	subSearch
	subReplace
)

type markerDecoder struct {
	buf string

	writing bool
	path    string
	mode    Mode
	reason  string
	lines   int

	sub     markerSub
	search  strings.Builder
	replace strings.Builder

	// swallow one newline immediately after a recognized marker; a lone CR
	// at a chunk boundary is held until the next byte decides whether it
	// belongs to a CRLF pair
	eatNewline bool
	pendingCR  bool

	evs []Event
}

func newMarkerDecoder() *markerDecoder {
	return &markerDecoder{}
}

func (d *markerDecoder) Feed(chunk string) []Event {
	d.evs = nil
	d.buf += chunk
	d.scan(false)
	return d.evs
}

func (d *markerDecoder) Finish() []Event {
	d.evs = nil
	d.scan(true)
	if d.buf != "" {
		d.emitText(d.buf)
		d.buf = ""
	}
	if d.pendingCR {
		// end of input resolves a held CR as literal
		d.pendingCR = false
		d.eatNewline = false
		d.emitText("\r")
	}
	if d.writing {
		d.endFile(true)
	}
	return d.evs
}

func (d *markerDecoder) scan(final bool) {
	for {
		open := strings.IndexByte(d.buf, '[')
		if open < 0 {
			d.emitText(d.buf)
			d.buf = ""
			return
		}
		if open > 0 {
			d.emitText(d.buf[:open])
			d.buf = d.buf[open:]
		}

		close := strings.IndexByte(d.buf, ']')
		if close < 0 {
			if len(d.buf) > maxMarkerLen || final {
				d.emitText(d.buf[:1])
				d.buf = d.buf[1:]
				continue
			}
			return // hold the tail, the closer may arrive in the next chunk
		}

		inner := d.buf[1:close]
		if close-1 > maxMarkerLen || !d.applyMarker(inner) {
			d.emitText(d.buf[:1])
			d.buf = d.buf[1:]
			continue
		}
		d.buf = d.buf[close+1:]
		d.eatNewline = true
	}
}

// applyMarker parses and executes one bracketed token; false means the text
// was not a marker and must be treated as literal content.
func (d *markerDecoder) applyMarker(inner string) bool {
	name, arg := inner, ""
	if idx := strings.IndexByte(inner, ':'); idx >= 0 {
		name, arg = inner[:idx], inner[idx+1:]
	}
	name = strings.TrimSpace(name)

	attrs := strings.Split(arg, "|")
	first := ""
	if len(attrs) > 0 {
		first = strings.TrimSpace(attrs[0])
	}
	mode, reason := "", ""
	for _, a := range attrs[1:] {
		a = strings.TrimSpace(a)
		switch {
		case strings.HasPrefix(a, "mode:"):
			mode = strings.TrimSpace(strings.TrimPrefix(a, "mode:"))
		case strings.HasPrefix(a, "reason:"):
			reason = strings.TrimSpace(strings.TrimPrefix(a, "reason:"))
		}
	}

	switch name {
	case "start-file":
		if first == "" {
			return false
		}
		d.startFile(first, ModeCreate, reason)
	case "patch-file", "edit-node":
		if first == "" {
			return false
		}
		m := ModeEdit
		if mode == "create" {
			m = ModeCreate
		}
		d.startFile(first, m, reason)
	case "end-file":
		if !d.writing {
			return true // stray end marker, swallow it
		}
		d.endFile(false)
	case "search":
		if !d.writing || d.mode != ModeEdit {
			return false
		}
		d.sub = subSearch
		d.search.Reset()
		d.replace.Reset()
	case "replace":
		if !d.writing || d.sub != subSearch {
			return false
		}
		d.sub = subReplace
	case "end-edit":
		if !d.writing || d.sub == subNone {
			return false
		}
		d.flushPair()
	case "delete-file":
		if first == "" {
			return false
		}
		d.evs = append(d.evs, Event{Kind: EventDelete, RawPath: first, Path: first, Reason: reason})
	case "move-file":
		from, to, ok := strings.Cut(first, "->")
		if !ok {
			return false
		}
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if from == "" || to == "" {
			return false
		}
		d.evs = append(d.evs, Event{Kind: EventMove, RawPath: from, Path: from, ToPath: to, Reason: reason})
	default:
		return false
	}
	return true
}

func (d *markerDecoder) startFile(path string, mode Mode, reason string) {
	if d.writing {
		// the generator moved on without an end marker
		d.endFile(false)
	}
	d.writing = true
	d.path, d.mode, d.reason = path, mode, reason
	d.lines = 0
	d.sub = subNone
	d.evs = append(d.evs, Event{Kind: EventStart, RawPath: path, Path: path, Mode: mode, Reason: reason})
}

func (d *markerDecoder) endFile(partial bool) {
	if d.sub != subNone {
		d.flushPair()
	}
	line := -1
	if partial {
		line = d.lines + 1
	}
	d.evs = append(d.evs, Event{Kind: EventEnd, RawPath: d.path, Path: d.path,
		Mode: d.mode, Partial: partial, CursorLine: line})
	d.writing = false
	d.path, d.reason = "", ""
	d.sub = subNone
}

func (d *markerDecoder) flushPair() {
	search := strings.TrimSuffix(d.search.String(), "\n")
	replace := strings.TrimSuffix(d.replace.String(), "\n")
	if search != "" || replace != "" {
		d.evs = append(d.evs, Event{Kind: EventChunk, RawPath: d.path, Path: d.path,
			Search: search, Replace: replace})
	}
	d.search.Reset()
	d.replace.Reset()
	d.sub = subNone
}

func (d *markerDecoder) emitText(text string) {
	if text == "" {
		return
	}
	if d.eatNewline {
		switch {
		case d.pendingCR:
			d.eatNewline = false
			d.pendingCR = false
			if text[0] == '\n' {
				text = text[1:]
			} else {
				text = "\r" + text
			}
		case text == "\r":
			d.pendingCR = true
			return
		default:
			d.eatNewline = false
			if text[0] == '\n' {
				text = text[1:]
			} else if strings.HasPrefix(text, "\r\n") {
				text = text[2:]
			}
		}
		if text == "" {
			return
		}
	}
	if !d.writing {
		return // prose between files is discarded
	}
	switch d.sub {
	case subSearch:
		d.search.WriteString(text)
	case subReplace:
		d.replace.WriteString(text)
	default:
		d.lines += strings.Count(text, "\n")
		d.evs = append(d.evs, Event{Kind: EventChunk, RawPath: d.path, Path: d.path, Text: text})
	}
}
