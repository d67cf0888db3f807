package stf

import (
	"regexp"
	"strings"
)

// FooterMarker is the badge line every generated markup file must carry
// exactly once; the preview collaborator keys off it.
const FooterMarker = `<!-- stf:generated -->`

// Heal attempts a deterministic structural repair of content for its kind and
// confirms the result against Scan. Repair is strictly additive/corrective:
// for style and script kinds the original content comes back untouched when
// the repaired version does not pass the scanner. Markup repair is
// independently safe and is always applied. Heal never panics.
func Heal(content string, kind FileKind) HealResult {
	switch kind {
	case KindStyle, KindStylePre:
		return healStyle(content, kind)
	case KindScript, KindScriptTyped:
		return healScript(content, kind)
	case KindMarkup:
		return healMarkup(content)
	}
	return HealResult{Content: content, OK: true}
}

func healStyle(content string, kind FileKind) HealResult {
	if err := Scan(content, kind); err == nil {
		return HealResult{Content: content, OK: true}
	}
	lineComments := kind == KindStylePre

	var b strings.Builder
	b.Grow(len(content) + 8)
	var st scanState
	for i := 0; i < len(content); i++ {
		c := content[i]
		var next byte
		if i+1 < len(content) {
			next = content[i+1]
		}

		if st.inLineCmt {
			b.WriteByte(c)
			if c == '\n' {
				st.inLineCmt = false
			}
			continue
		}
		if st.inBlockCmt {
			b.WriteByte(c)
			if c == '*' && next == '/' {
				b.WriteByte(next)
				st.inBlockCmt = false
				i++
			}
			continue
		}
		if st.inSingle || st.inDouble {
			b.WriteByte(c)
			st.step(c, next, false)
			continue
		}

		switch {
		case c == '/' && next == '*':
			st.inBlockCmt = true
			b.WriteByte(c)
			b.WriteByte(next)
			i++
		case lineComments && c == '/' && next == '/':
			st.inLineCmt = true
			b.WriteByte(c)
			b.WriteByte(next)
			i++
		case c == '\'':
			st.inSingle = true
			b.WriteByte(c)
		case c == '"':
			st.inDouble = true
			b.WriteByte(c)
		case c == '{':
			st.brace++
			b.WriteByte(c)
		case c == '}':
			if st.brace == 0 {
				continue // drop the extra closer
			}
			st.brace--
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}

	if st.inSingle {
		b.WriteByte('\'')
	}
	if st.inDouble {
		b.WriteByte('"')
	}
	if st.inBlockCmt {
		b.WriteString("*/")
	}
	for ; st.brace > 0; st.brace-- {
		b.WriteString("\n}")
	}

	repaired := b.String()
	if err := Scan(repaired, kind); err != nil {
		return HealResult{Content: content, Reason: err.Error()}
	}
	return HealResult{Content: repaired, Repaired: repaired != content, OK: true}
}

// gluedCommentRe matches a line comment token fused directly to a declaration
// keyword, which happens when a chunk boundary swallowed the newline after a
// comment.
var gluedCommentRe = regexp.MustCompile(`//((?:const|let|var|function|class)\b)`)

func healScript(content string, kind FileKind) HealResult {
	if err := Scan(content, kind); err == nil {
		return HealResult{Content: content, OK: true}
	}

	repaired := gluedCommentRe.ReplaceAllString(content, "//\n$1")
	repaired = rebalanceScript(repaired)

	if err := Scan(repaired, kind); err != nil {
		return HealResult{Content: content, Reason: err.Error()}
	}
	return HealResult{Content: repaired, Repaired: repaired != content, OK: true}
}

// rebalanceScript drops closers that do not match the innermost open bracket
// and appends the expected closers for everything still open at end of input.
func rebalanceScript(content string) string {
	var b strings.Builder
	b.Grow(len(content) + 8)
	var st scanState
	var expected []byte // stack of closers we owe

	closerFor := map[byte]byte{'{': '}', '(': ')', '[': ']'}

	for i := 0; i < len(content); i++ {
		c := content[i]
		var next byte
		if i+1 < len(content) {
			next = content[i+1]
		}

		if st.inString() || st.inComment() || st.escaped {
			b.WriteByte(c)
			if st.step(c, next, true) {
				b.WriteByte(next)
				i++
			}
			continue
		}

		switch c {
		case '{', '(', '[':
			expected = append(expected, closerFor[c])
			b.WriteByte(c)
		case '}', ')', ']':
			if len(expected) == 0 || expected[len(expected)-1] != c {
				continue // mismatched closer, skip it
			}
			expected = expected[:len(expected)-1]
			b.WriteByte(c)
		default:
			b.WriteByte(c)
			if st.step(c, next, true) {
				b.WriteByte(next)
				i++
			}
		}
	}

	if st.inSingle {
		b.WriteByte('\'')
	}
	if st.inDouble {
		b.WriteByte('"')
	}
	if st.inTemplate {
		b.WriteByte('`')
	}
	if st.inBlockCmt {
		b.WriteString("*/")
	}
	if st.inLineCmt {
		b.WriteByte('\n')
	}
	for i := len(expected) - 1; i >= 0; i-- {
		b.WriteByte(expected[i])
	}
	return b.String()
}

func healMarkup(content string) HealResult {
	repaired := content

	open, _ := walkTags(repaired)
	if len(open) > 0 {
		var b strings.Builder
		b.WriteString(repaired)
		if !strings.HasSuffix(repaired, "\n") {
			b.WriteByte('\n')
		}
		for i := len(open) - 1; i >= 0; i-- {
			b.WriteString("</")
			b.WriteString(open[i])
			b.WriteString(">\n")
		}
		repaired = b.String()
	}

	repaired = ensureFooter(repaired)
	return HealResult{Content: repaired, Repaired: repaired != content, OK: true}
}

// ensureFooter inserts FooterMarker exactly once: before the last </body>,
// else before the last </html>, else appended. A second call is a no-op.
func ensureFooter(content string) string {
	if strings.Contains(content, FooterMarker) {
		return content
	}
	line := FooterMarker + "\n"
	if idx := strings.LastIndex(content, "</body>"); idx >= 0 {
		return content[:idx] + line + content[idx:]
	}
	if idx := strings.LastIndex(content, "</html>"); idx >= 0 {
		return content[:idx] + line + content[idx:]
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + line
}
