package stf

import (
	"fmt"
	"path/filepath"
	"strings"
)

// KindForPath maps a file extension to its scanning rules.
func KindForPath(path string) FileKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return KindMarkup
	case ".css":
		return KindStyle
	case ".scss", ".less":
		return KindStylePre
	case ".js", ".mjs", ".cjs", ".jsx":
		return KindScript
	case ".ts", ".tsx":
		return KindScriptTyped
	}
	return KindOther
}

type scanState struct {
	brace, paren, bracket int

	inSingle   bool
	inDouble   bool
	inTemplate bool
	inLineCmt  bool
	inBlockCmt bool
	escaped    bool

	// set when a closer with a zero counter is seen
	err error
}

func (s *scanState) inString() bool {
	return s.inSingle || s.inDouble || s.inTemplate
}

func (s *scanState) inComment() bool {
	return s.inLineCmt || s.inBlockCmt
}

// step consumes one character together with its successor (0 at end of input).
// Returns true when next was consumed as part of a two-character token.
func (s *scanState) step(c, next byte, comments bool) bool {
	if s.escaped {
		s.escaped = false
		return false
	}

	switch {
	case s.inLineCmt:
		if c == '\n' {
			s.inLineCmt = false
		}
		return false
	case s.inBlockCmt:
		if c == '*' && next == '/' {
			s.inBlockCmt = false
			return true
		}
		return false
	case s.inSingle:
		switch c {
		case '\\':
			s.escaped = true
		case '\'':
			s.inSingle = false
		case '\n':
			// a raw newline terminates a single-quoted string
			s.inSingle = false
		}
		return false
	case s.inDouble:
		switch c {
		case '\\':
			s.escaped = true
		case '"':
			s.inDouble = false
		case '\n':
			s.inDouble = false
		}
		return false
	case s.inTemplate:
		switch c {
		case '\\':
			s.escaped = true
		case '`':
			s.inTemplate = false
		}
		return false
	}

	if comments {
		if c == '/' && next == '/' {
			s.inLineCmt = true
			return true
		}
		if c == '/' && next == '*' {
			s.inBlockCmt = true
			return true
		}
	}

	switch c {
	case '\'':
		s.inSingle = true
	case '"':
		s.inDouble = true
	case '`':
		s.inTemplate = true
	case '{':
		s.brace++
	case '}':
		if s.brace == 0 {
			s.fail("}")
			return false
		}
		s.brace--
	case '(':
		s.paren++
	case ')':
		if s.paren == 0 {
			s.fail(")")
			return false
		}
		s.paren--
	case '[':
		s.bracket++
	case ']':
		if s.bracket == 0 {
			s.fail("]")
			return false
		}
		s.bracket--
	}
	return false
}

func (s *scanState) fail(tok string) {
	if s.err == nil {
		s.err = fmt.Errorf("unexpected closing token %q", tok)
	}
}

func (s *scanState) finish() error {
	if s.err != nil {
		return s.err
	}
	switch {
	case s.inBlockCmt:
		return fmt.Errorf("unterminated block comment")
	case s.inTemplate:
		return fmt.Errorf("unterminated template string")
	case s.inSingle || s.inDouble:
		return fmt.Errorf("unterminated string")
	}
	if s.brace != 0 || s.paren != 0 || s.bracket != 0 {
		return fmt.Errorf("unbalanced: %d brace, %d paren, %d bracket left open",
			s.brace, s.paren, s.bracket)
	}
	return nil
}

// Scan checks content of the given kind for internal structural consistency.
// It is a single linear pass and never panics; all failures come back as an
// error whose message is the reason. A nil error means the content is
// internally consistent, not that it is syntactically valid.
func Scan(content string, kind FileKind) error {
	switch kind {
	case KindStyle:
		return scanStyle(content, false)
	case KindStylePre:
		return scanStyle(content, true)
	case KindScript:
		if err := scanScript(content); err != nil {
			return err
		}
		return probeScriptSyntax(content)
	case KindScriptTyped:
		// the probe grammar covers plain script only, so typed dialects get
		// the bracket/string pass alone
		return scanScript(content)
	case KindMarkup:
		return scanMarkup(content)
	}
	return nil
}

func scanScript(content string) error {
	var st scanState
	for i := 0; i < len(content); i++ {
		var next byte
		if i+1 < len(content) {
			next = content[i+1]
		}
		if st.step(content[i], next, true) {
			i++
		}
		if st.err != nil {
			return st.err
		}
	}
	return st.finish()
}

// scanStyle tracks braces and strings only; parens in CSS appear inside
// url(...) and functional values where imbalance is tolerated by browsers.
// lineComments additionally skips // comments for the preprocessor dialects.
func scanStyle(content string, lineComments bool) error {
	var st scanState
	for i := 0; i < len(content); i++ {
		c := content[i]
		var next byte
		if i+1 < len(content) {
			next = content[i+1]
		}

		if st.inLineCmt {
			if c == '\n' {
				st.inLineCmt = false
			}
			continue
		}
		if st.inBlockCmt {
			if c == '*' && next == '/' {
				st.inBlockCmt = false
				i++
			}
			continue
		}
		if st.inSingle || st.inDouble {
			st.step(c, next, false)
			continue
		}

		switch {
		case c == '/' && next == '*':
			st.inBlockCmt = true
			i++
		case lineComments && c == '/' && next == '/':
			st.inLineCmt = true
			i++
		case c == '\'':
			st.inSingle = true
		case c == '"':
			st.inDouble = true
		case c == '{':
			st.brace++
		case c == '}':
			if st.brace == 0 {
				return fmt.Errorf("unexpected closing token %q", "}")
			}
			st.brace--
		}
	}
	if st.inBlockCmt {
		return fmt.Errorf("unterminated block comment")
	}
	if st.inSingle || st.inDouble {
		return fmt.Errorf("unterminated string")
	}
	if st.brace != 0 {
		return fmt.Errorf("unbalanced: %d brace left open", st.brace)
	}
	return nil
}

// scanMarkup checks tag balance the same way the healer walks tags, so a
// markup file the healer has seen always passes.
func scanMarkup(content string) error {
	stack, bad := walkTags(content)
	if bad != "" {
		return fmt.Errorf("unexpected closing tag </%s>", bad)
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed tag <%s>", stack[len(stack)-1])
	}
	return nil
}

var voidElements = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {},
	"img": {}, "input": {}, "link": {}, "meta": {}, "param": {},
	"source": {}, "track": {}, "wbr": {}, "!doctype": {},
}

// walkTags returns the stack of still-open tag names and the first stray
// closing tag name, ignoring void elements and comments.
func walkTags(content string) (open []string, stray string) {
	lower := strings.ToLower(content)
	for i := 0; i < len(lower); i++ {
		if lower[i] != '<' {
			continue
		}
		if strings.HasPrefix(lower[i:], "<!--") {
			end := strings.Index(lower[i:], "-->")
			if end < 0 {
				return open, stray
			}
			i += end + 2
			continue
		}

		close := i+1 < len(lower) && lower[i+1] == '/'
		j := i + 1
		if close {
			j++
		}
		k := j
		for k < len(lower) && (isTagNameChar(lower[k]) || (k == j && lower[k] == '!')) {
			k++
		}
		name := lower[j:k]
		if name == "" {
			continue
		}

		end := strings.IndexByte(lower[i:], '>')
		if end < 0 {
			return open, stray
		}
		selfClosing := end >= 1 && lower[i+end-1] == '/'
		i += end

		if _, void := voidElements[name]; void || (selfClosing && !close) {
			continue
		}
		if name == "script" && !close {
			// raw text element: skip to its closer
			rest := lower[i:]
			idx := strings.Index(rest, "</script")
			if idx < 0 {
				open = append(open, name)
				return open, stray
			}
			open = append(open, name)
			i += idx
			continue
		}

		if !close {
			open = append(open, name)
			continue
		}
		found := -1
		for n := len(open) - 1; n >= 0; n-- {
			if open[n] == name {
				found = n
				break
			}
		}
		if found < 0 {
			if stray == "" {
				stray = name
			}
			continue
		}
		open = append(open[:found], open[found+1:]...)
	}
	return open, stray
}

func isTagNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-'
}
