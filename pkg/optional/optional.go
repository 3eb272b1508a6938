// Package optional distinguishes "field absent" from "field present but
// zero" in partial-update DTOs (e.g. PATCH-style profile updates), the way
// sharetube-server uses github.com/skewb1k/optional for the same purpose.
// Reimplemented locally rather than imported: a two-field json tristate
// wrapper is a handful of lines and not worth an external dependency whose
// module path drifts between the teacher's own revisions
// (skewb1k/optional vs skewb1k/goutils/optional).
package optional

import (
	"bytes"
	"encoding/json"
)

var jsonNull = []byte("null")

// Field represents a JSON field that may be: absent from the payload,
// present and null, or present with a value.
type Field[T any] struct {
	Defined bool
	Null    bool
	Value   T
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Defined = true

	if bytes.Equal(data, jsonNull) {
		f.Null = true
		return nil
	}

	return json.Unmarshal(data, &f.Value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Defined || f.Null {
		return jsonNull, nil
	}

	return json.Marshal(f.Value)
}
