package debugger

import "encoding/json"

// UnknownText is shown for a value the backend could not determine.
const UnknownText = "unknown"

type valueState uint8

const (
	valueAbsent valueState = iota
	valueUnknown
	valueKnown
)

// Value is a variable's displayed value. The zero Value is absent: the node
// has no value slot at all (e.g. a scope grouping node). Unknown is a slot the
// backend reported as null.
type Value struct {
	state valueState
	text  string
}

// Known returns a value with text s.
func Known(s string) Value {
	return Value{state: valueKnown, text: s}
}

// Unknown returns a value reported as null by the backend.
func Unknown() Value {
	return Value{state: valueUnknown}
}

// IsAbsent reports whether the value has no slot.
func (v Value) IsAbsent() bool {
	return v.state == valueAbsent
}

// IsUnknown reports whether the value was reported as null.
func (v Value) IsUnknown() bool {
	return v.state == valueUnknown
}

// Text returns the value's text and whether a slot should be displayed.
// Unknown values display as UnknownText.
func (v Value) Text() (string, bool) {
	switch v.state {
	case valueKnown:
		return v.text, true
	case valueUnknown:
		return UnknownText, true
	default:
		return "", false
	}
}

// String returns the displayed text, or "" for an absent value.
func (v Value) String() string {
	s, _ := v.Text()
	return s
}

// MarshalJSON encodes a known value as a string and anything else as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.state != valueKnown {
		return []byte("null"), nil
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON decodes null as unknown and a string as known.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Unknown()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = Known(s)
	return nil
}

// Variable is one entry in the variable tree. Its children are fetched on
// demand with Proxy.VariableChildren and are not part of the record.
type Variable struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Value       Value  `json:"value"`
	Type        string `json:"type,omitempty"`
	HasChildren bool   `json:"hasChildren"`
}
