package stf

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// The JSON-shaped protocol carries an object with a "project_files" array of
// {name|path, content} entries. Content strings are streamed out as chunks
// the moment each character is unescaped, without waiting for the closing
// quote, because payloads can be arbitrarily large.

const filesArrayKey = "project_files"

type jsonFrame struct {
	isArray bool
	key     string // object key whose value this container is
}

type strTarget int

const (
	targetSkip strTarget = iota
	targetKey
	targetName
	targetContent
)

type jsonDecoder struct {
	stack     []jsonFrame
	expectKey bool
	curKey    string

	inStr  bool
	esc    bool
	inHex  bool
	hexBuf []byte
	high   rune // pending high surrogate, 0 when none

	target  strTarget
	strBuf  strings.Builder // key and name accumulation
	pending strings.Builder // content decoded before the identifying key arrived

	filesDepth int // stack depth of the project_files array, 0 when outside

	inEntry     bool
	rawPath     string
	started     bool
	ended       bool
	contentDone bool

	chunk strings.Builder // content decoded during the current Feed call
	lines int

	evs []Event
}

func newJSONDecoder() *jsonDecoder {
	return &jsonDecoder{hexBuf: make([]byte, 0, 4)}
}

func (d *jsonDecoder) Feed(chunk string) []Event {
	d.evs = nil
	for i := 0; i < len(chunk); i++ {
		d.step(chunk[i])
	}
	d.flushChunk()
	return d.evs
}

func (d *jsonDecoder) Finish() []Event {
	d.evs = nil
	d.flushChunk()
	if d.started && !d.ended {
		line := d.lines + 1
		d.evs = append(d.evs, Event{Kind: EventEnd, Path: d.rawPath, RawPath: d.rawPath,
			Mode: ModeCreate, Partial: true, CursorLine: line})
		d.ended = true
	}
	return d.evs
}

func (d *jsonDecoder) step(c byte) {
	if d.inStr {
		d.stepString(c)
		return
	}

	switch c {
	case '"':
		d.inStr = true
		d.esc, d.inHex = false, false
		d.strBuf.Reset()
		d.target = d.classifyString()
	case '{':
		d.stack = append(d.stack, jsonFrame{key: d.curKey})
		d.curKey = ""
		d.expectKey = true
		if d.filesDepth > 0 && len(d.stack) == d.filesDepth+1 && d.stack[len(d.stack)-2].isArray {
			d.enterEntry()
		}
	case '}':
		if len(d.stack) > 0 {
			if d.inEntry && len(d.stack) == d.filesDepth+1 {
				d.leaveEntry()
			}
			d.stack = d.stack[:len(d.stack)-1]
		}
		d.expectKey = false
	case '[':
		d.stack = append(d.stack, jsonFrame{isArray: true, key: d.curKey})
		if d.filesDepth == 0 && d.curKey == filesArrayKey {
			d.filesDepth = len(d.stack)
		}
		d.curKey = ""
		d.expectKey = false
	case ']':
		if len(d.stack) > 0 {
			if len(d.stack) == d.filesDepth {
				d.filesDepth = 0
			}
			d.stack = d.stack[:len(d.stack)-1]
		}
	case ':':
		d.expectKey = false
	case ',':
		if len(d.stack) > 0 && !d.stack[len(d.stack)-1].isArray {
			d.expectKey = true
		}
	}
}

func (d *jsonDecoder) classifyString() strTarget {
	if len(d.stack) == 0 {
		return targetSkip
	}
	top := d.stack[len(d.stack)-1]
	if !top.isArray && d.expectKey {
		return targetKey
	}
	if d.inEntry && len(d.stack) == d.filesDepth+1 {
		switch d.curKey {
		case "name", "path":
			return targetName
		case "content":
			return targetContent
		}
	}
	return targetSkip
}

func (d *jsonDecoder) stepString(c byte) {
	switch {
	case d.inHex:
		d.hexBuf = append(d.hexBuf, c)
		if len(d.hexBuf) == 4 {
			d.inHex = false
			d.emitUnicode()
		}
	case d.esc:
		d.esc = false
		switch c {
		case 'u':
			d.inHex = true
			d.hexBuf = d.hexBuf[:0]
		case 'n':
			d.writeRune('\n')
		case 'r':
			d.writeRune('\r')
		case 't':
			d.writeRune('\t')
		case 'b':
			d.writeRune('\b')
		case 'f':
			d.writeRune('\f')
		case '"', '\\', '/':
			d.writeRune(rune(c))
		default:
			d.writeRune(rune(c))
		}
	case c == '\\':
		d.esc = true
	case c == '"':
		d.closeString()
	default:
		d.writeByte(c)
	}
}

func (d *jsonDecoder) emitUnicode() {
	var v rune
	for _, h := range d.hexBuf {
		v <<= 4
		switch {
		case h >= '0' && h <= '9':
			v |= rune(h - '0')
		case h >= 'a' && h <= 'f':
			v |= rune(h-'a') + 10
		case h >= 'A' && h <= 'F':
			v |= rune(h-'A') + 10
		}
	}

	if d.high != 0 {
		if utf16.IsSurrogate(v) {
			d.writeDecoded(utf16.DecodeRune(d.high, v))
			d.high = 0
			return
		}
		d.writeDecoded(utf8.RuneError)
		d.high = 0
	}
	if utf16.IsSurrogate(v) {
		if v >= 0xD800 && v < 0xDC00 {
			d.high = v
			return
		}
		v = utf8.RuneError
	}
	d.writeDecoded(v)
}

func (d *jsonDecoder) writeRune(r rune) {
	d.flushSurrogate()
	d.writeDecoded(r)
}

func (d *jsonDecoder) writeByte(c byte) {
	d.flushSurrogate()
	d.sink().WriteByte(c)
}

func (d *jsonDecoder) writeDecoded(r rune) {
	d.sink().WriteRune(r)
}

func (d *jsonDecoder) flushSurrogate() {
	if d.high != 0 {
		d.sink().WriteRune(utf8.RuneError)
		d.high = 0
	}
}

func (d *jsonDecoder) sink() *strings.Builder {
	switch d.target {
	case targetContent:
		if d.started {
			return &d.chunk
		}
		return &d.pending
	default:
		return &d.strBuf
	}
}

func (d *jsonDecoder) closeString() {
	d.inStr = false
	d.flushSurrogate()

	switch d.target {
	case targetKey:
		d.curKey = d.strBuf.String()
	case targetName:
		d.rawPath = d.strBuf.String()
		if !d.started && d.rawPath != "" {
			d.flushChunk()
			d.evs = append(d.evs, Event{Kind: EventStart, RawPath: d.rawPath, Path: d.rawPath, Mode: ModeCreate})
			d.started = true
			if d.pending.Len() > 0 {
				d.emitChunk(d.pending.String())
				d.pending.Reset()
			}
			if d.contentDone {
				d.emitEnd(false)
			}
		}
	case targetContent:
		if d.started {
			d.flushChunk()
			d.emitEnd(false)
		} else {
			d.contentDone = true
		}
	}
	d.target = targetSkip
}

func (d *jsonDecoder) enterEntry() {
	d.inEntry = true
	d.rawPath = ""
	d.started, d.ended, d.contentDone = false, false, false
	d.pending.Reset()
	d.chunk.Reset()
	d.lines = 0
}

func (d *jsonDecoder) leaveEntry() {
	d.flushChunk()
	if d.started && !d.ended {
		// entry closed without a content field
		d.emitEnd(false)
	}
	d.inEntry = false
	d.started, d.ended = false, false
	d.rawPath = ""
}

func (d *jsonDecoder) flushChunk() {
	if d.chunk.Len() == 0 {
		return
	}
	d.emitChunk(d.chunk.String())
	d.chunk.Reset()
}

func (d *jsonDecoder) emitChunk(text string) {
	d.lines += strings.Count(text, "\n")
	d.evs = append(d.evs, Event{Kind: EventChunk, Path: d.rawPath, RawPath: d.rawPath, Text: text})
}

func (d *jsonDecoder) emitEnd(partial bool) {
	line := -1
	if partial {
		line = d.lines + 1
	}
	d.evs = append(d.evs, Event{Kind: EventEnd, Path: d.rawPath, RawPath: d.rawPath,
		Mode: ModeCreate, Partial: partial, CursorLine: line})
	d.ended = true
}
