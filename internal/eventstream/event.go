package eventstream

import (
	"math"
	"strconv"
	"strings"
)

// Event is a single Server-Sent Event.
//
// Every field is optional. Empty strings are treated as unset and a nil
// Retry is omitted. An Event with no fields set renders as a bare frame
// terminator, which clients ignore; it works as a bare keep-alive.
type Event struct {
	// Event is the event name. Only the first line is sent.
	Event string

	// ID is the event id. Only the first line is sent.
	ID string

	// Retry is the reconnection delay in milliseconds. It is sent only when
	// it holds a non-negative, finite, whole number.
	Retry *float64

	// Data is the event payload. Multi-line values are sent as one data
	// line per physical line.
	Data string

	// Comment is sent as comment lines, one per physical line.
	Comment string
}

// RetryMillis returns a Retry value for ms milliseconds.
func RetryMillis(ms float64) *float64 {
	return &ms
}

// Format renders e in the text/event-stream wire format.
//
// Format never fails: fields that cannot be represented (a negative or
// fractional retry, for example) are omitted.
func Format(e Event) []byte {
	var b strings.Builder

	if e.Event != "" {
		b.WriteString("event: ")
		b.WriteString(firstLine(e.Event))
		b.WriteByte('\n')
	}
	if e.ID != "" {
		b.WriteString("id: ")
		b.WriteString(firstLine(e.ID))
		b.WriteByte('\n')
	}
	if validRetry(e.Retry) {
		b.WriteString("retry: ")
		b.WriteString(strconv.FormatInt(int64(*e.Retry), 10))
		b.WriteByte('\n')
	}
	if e.Data != "" {
		writePrefixed(&b, "data: ", e.Data)
	}
	if e.Comment != "" {
		writePrefixed(&b, ": ", e.Comment)
	}
	b.WriteByte('\n')

	return []byte(b.String())
}

func validRetry(r *float64) bool {
	if r == nil {
		return false
	}
	v := *r
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v >= math.MaxInt64 {
		return false
	}
	return v == math.Trunc(v)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// writePrefixed writes every line of value with prefix, followed by a newline.
func writePrefixed(b *strings.Builder, prefix, value string) {
	for _, line := range strings.Split(value, "\n") {
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteByte('\n')
	}
}
