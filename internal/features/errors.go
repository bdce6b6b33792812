package features

import "fmt"

// EncodingError reports a raw field that is malformed or outside the domain
// the model was trained on.
type EncodingError struct {
	Field  string
	Value  string
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("encode %s=%q: invalid value", e.Field, e.Value)
	}
	return fmt.Sprintf("encode %s=%q: %s", e.Field, e.Value, e.Reason)
}
