package stf

import "strings"

// Decoder turns incrementally-arriving text into file-mutation events.
//
// Decoder state is explicit and survives between Feed calls: a chunk boundary
// may fall in the middle of an escape sequence, a marker keyword or a string,
// and the emitted event sequence must not depend on where the boundaries are.
// Finish flushes whatever is still open, marking interrupted files partial.
type Decoder interface {
	Feed(chunk string) []Event
	Finish() []Event
}

type Protocol int

const (
	ProtocolAuto Protocol = iota
	ProtocolJSON
	ProtocolMarker
	ProtocolMarkdown
)

func (p Protocol) String() string {
	switch p {
	case ProtocolJSON:
		return "json"
	case ProtocolMarker:
		return "marker"
	case ProtocolMarkdown:
		return "markdown"
	}
	return "auto"
}

func ParseProtocol(s string) Protocol {
	switch s {
	case "json":
		return ProtocolJSON
	case "marker":
		return ProtocolMarker
	case "markdown":
		return ProtocolMarkdown
	}
	return ProtocolAuto
}

// SniffProtocol guesses the protocol from the head of a payload.
func SniffProtocol(head string) Protocol {
	trimmed := strings.TrimSpace(head)
	switch {
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		if strings.HasPrefix(trimmed, "[start-file") || strings.HasPrefix(trimmed, "[patch-file") ||
			strings.HasPrefix(trimmed, "[edit-node") || strings.HasPrefix(trimmed, "[delete-file") ||
			strings.HasPrefix(trimmed, "[move-file") {
			return ProtocolMarker
		}
		return ProtocolJSON
	case strings.Contains(trimmed, "[start-file") || strings.Contains(trimmed, "[patch-file") ||
		strings.Contains(trimmed, "[edit-node") || strings.Contains(trimmed, "[delete-file") ||
		strings.Contains(trimmed, "[move-file"):
		return ProtocolMarker
	case strings.Contains(trimmed, "```"):
		return ProtocolMarkdown
	}
	return ProtocolMarker
}

// NewDecoder returns a fresh decoder for the protocol. ProtocolAuto sniffs on
// the first fed chunk.
func NewDecoder(p Protocol) Decoder {
	switch p {
	case ProtocolJSON:
		return newJSONDecoder()
	case ProtocolMarker:
		return newMarkerDecoder()
	case ProtocolMarkdown:
		return newMarkdownDecoder()
	}
	return &autoDecoder{}
}

// autoDecoder defers protocol selection until the first chunk arrives.
type autoDecoder struct {
	inner Decoder
	held  strings.Builder
}

const sniffWindow = 64

func (d *autoDecoder) Feed(chunk string) []Event {
	if d.inner != nil {
		return d.inner.Feed(chunk)
	}
	d.held.WriteString(chunk)
	if d.held.Len() < sniffWindow && strings.TrimSpace(d.held.String()) == "" {
		return nil
	}
	if d.held.Len() < sniffWindow && !containsProtocolHint(d.held.String()) {
		return nil
	}
	d.inner = NewDecoder(SniffProtocol(d.held.String()))
	return d.inner.Feed(d.held.String())
}

func (d *autoDecoder) Finish() []Event {
	if d.inner == nil {
		if d.held.Len() == 0 {
			return nil
		}
		d.inner = NewDecoder(SniffProtocol(d.held.String()))
		evs := d.inner.Feed(d.held.String())
		return append(evs, d.inner.Finish()...)
	}
	return d.inner.Finish()
}

func containsProtocolHint(head string) bool {
	trimmed := strings.TrimSpace(head)
	return strings.HasPrefix(trimmed, "{") || strings.Contains(trimmed, "[") ||
		strings.Contains(trimmed, "```")
}
