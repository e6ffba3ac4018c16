// File path: internal/protocol/sentinel.go
package protocol

import "strings"

// Kind identifies a sentinel control message embedded in chat text. The
// vocabulary is closed and versioned: new interactive stages require a new
// prefix, never a repurposed payload shape.
type Kind int

const (
	KindPlainText Kind = iota
	KindMethodChoice
	KindTableSelection
	KindColumnSelection
	KindExecute
)

// Wire prefixes. A prompt from the server and the client's answer share the
// same kind: a TableSelection from the server lists the selectable tables,
// the client replies with a TableSelection carrying the chosen subset.
const (
	prefixMethod  = ";;METHOD;;"
	prefixTables  = ";;TABLES;;"
	prefixColumns = ";;COLUMNS;;"
	prefixExecute = ";;EXECUTE;;"
)

// Method-choice payloads.
const (
	MethodManual = "manual"
	MethodAuto   = "auto"
)

var prefixes = []struct {
	kind   Kind
	prefix string
}{
	{KindMethodChoice, prefixMethod},
	{KindTableSelection, prefixTables},
	{KindColumnSelection, prefixColumns},
	{KindExecute, prefixExecute},
}

// Message is the tagged parse result of a chat turn's content.
type Message struct {
	Kind    Kind
	Payload string
}

// Parse decodes the sentinel prefix convention. Text without a recognized
// prefix, including malformed ";;...;;" sequences a user may type literally,
// degrades to PlainText rather than erroring.
func Parse(text string) Message {
	for _, entry := range prefixes {
		if strings.HasPrefix(text, entry.prefix) {
			return Message{Kind: entry.kind, Payload: text[len(entry.prefix):]}
		}
	}
	return Message{Kind: KindPlainText, Payload: text}
}

// Encode is the inverse of Parse: Parse(Encode(k, p)) yields {k, p} for every
// supported kind. PlainText encodes as the payload itself.
func Encode(kind Kind, payload string) string {
	for _, entry := range prefixes {
		if entry.kind == kind {
			return entry.prefix + payload
		}
	}
	return payload
}

// EncodeList renders a name list as a sentinel payload.
func EncodeList(items []string) string {
	return strings.Join(items, ",")
}

// DecodeList splits a comma-separated payload into trimmed, non-empty names.
func DecodeList(payload string) []string {
	parts := strings.Split(payload, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func (k Kind) String() string {
	switch k {
	case KindPlainText:
		return "plain_text"
	case KindMethodChoice:
		return "method_choice"
	case KindTableSelection:
		return "table_selection"
	case KindColumnSelection:
		return "column_selection"
	case KindExecute:
		return "execute"
	default:
		return "unknown"
	}
}
