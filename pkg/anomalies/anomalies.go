// Package anomalies models failures as values instead of raised errors.
//
// Every stage of the request pipeline converts transport errors, HTTP error
// statuses, and decode failures into an *Anomaly tagged with one of a closed
// set of categories. Anomalies flow to callers on the same channels as
// successful results; only the busy category is ever handled internally.
package anomalies

import (
	"fmt"
	"strings"
)

// Category classifies a failure. The set is closed.
type Category string

const (
	// Incorrect is a client-side mistake (bad input, 4xx).
	Incorrect Category = "incorrect"

	// Forbidden is an authentication or authorization failure (403).
	Forbidden Category = "forbidden"

	// Busy means the server declined the request under load (503, throttled).
	// Busy is the only category the pipeline retries.
	Busy Category = "busy"

	// Unavailable means the server could not be reached (504, connect failed).
	Unavailable Category = "unavailable"

	// NotFound means the target could not be resolved.
	NotFound Category = "not-found"

	// Interrupted means the request timed out.
	Interrupted Category = "interrupted"

	// Fault is everything else: 5xx, unclassified transport failures,
	// decode errors, converted panics.
	Fault Category = "fault"
)

// Anomaly is a failure value. It implements error so it can travel through
// error-shaped plumbing, but the pipeline never panics with one.
type Anomaly struct {
	// Category is the failure class. Always set.
	Category Category `json:"cognitect.anomalies/category" codec:"cognitect.anomalies/category"`

	// Message is a human-readable description. Optional.
	Message string `json:"cognitect.anomalies/message,omitempty" codec:"cognitect.anomalies/message"`

	// HTTPError carries the decoded response body when the anomaly was
	// derived from an HTTP error status. Optional.
	HTTPError any `json:"http-error,omitempty" codec:"http-error"`

	// Payload carries any additional fields the server attached to a
	// body-level anomaly. Optional.
	Payload map[string]any `json:"-" codec:"-"`
}

// New builds an anomaly with the given category and message.
func New(category Category, message string) *Anomaly {
	return &Anomaly{Category: category, Message: message}
}

// Newf builds an anomaly with a formatted message.
func Newf(category Category, format string, args ...any) *Anomaly {
	return &Anomaly{Category: category, Message: fmt.Sprintf(format, args...)}
}

// FromError converts a raised error into a fault anomaly carrying the
// error's concrete type and message.
func FromError(err error) *Anomaly {
	if err == nil {
		return nil
	}
	return &Anomaly{Category: Fault, Message: fmt.Sprintf("%T: %s", err, err.Error())}
}

// Error implements the error interface.
func (a *Anomaly) Error() string {
	if a.Message == "" {
		return string(a.Category)
	}
	return fmt.Sprintf("%s: %s", a.Category, a.Message)
}

func (a *Anomaly) String() string { return a.Error() }

// IsAnomaly reports whether v carries an anomaly category. It recognizes
// *Anomaly values and decoded response maps with a category key.
func IsAnomaly(v any) bool {
	switch t := v.(type) {
	case *Anomaly:
		return t != nil && t.Category != ""
	case map[string]any:
		_, ok := t[CategoryKey]
		return ok
	default:
		return false
	}
}

// CategoryKey and MessageKey are the wire names of the anomaly fields.
const (
	CategoryKey = "cognitect.anomalies/category"
	MessageKey  = "cognitect.anomalies/message"
)

// FromMap reconstructs an anomaly from a decoded response body. Returns nil
// when the body carries no category. The category string is preserved as
// sent, so historical server-side spellings round-trip untouched.
func FromMap(m map[string]any) *Anomaly {
	cat, ok := m[CategoryKey]
	if !ok {
		return nil
	}
	a := &Anomaly{Category: Category(keywordName(cat))}
	if msg, ok := m[MessageKey].(string); ok {
		a.Message = msg
	}
	payload := make(map[string]any)
	for k, v := range m {
		if k != CategoryKey && k != MessageKey {
			payload[k] = v
		}
	}
	if len(payload) > 0 {
		a.Payload = payload
	}
	return a
}

// keywordName renders a decoded category value (string, keyword, or anything
// with a String form) as its bare name.
func keywordName(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprintf("%v", v)
	}
	return strings.TrimPrefix(s, ":")
}
