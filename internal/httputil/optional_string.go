package httputil

import (
	"bytes"
	"encoding/json"
)

// OptionalString is a PATCH field that distinguishes absent, null and set.
// A zero value is absent; Null clears the field on the server; Set carries a value.
// Tag fields with `omitzero` so an absent value is left out when marshaling.
type OptionalString struct {
	Present bool
	Value   *string
}

// Set returns a present OptionalString holding v
func Set(v string) OptionalString {
	return OptionalString{Present: true, Value: &v}
}

// Null returns a present OptionalString that clears the field
func Null() OptionalString {
	return OptionalString{Present: true}
}

// IsZero reports whether the field is absent
func (o OptionalString) IsZero() bool {
	return !o.Present
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// UnmarshalJSON marks the field present; a JSON null leaves Value nil
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true

	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}
