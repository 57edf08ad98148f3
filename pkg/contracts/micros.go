package contracts

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Micros is a non-negative monetary amount in integer micros of a currency
// unit. It crosses every external boundary as a decimal string so that large
// values survive JSON number parsers with float64 semantics.
type Micros int64

// MarshalJSON encodes the amount as a string.
func (m Micros) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(m), 10))
}

// UnmarshalJSON accepts only a decimal string; negative values are rejected.
func (m *Micros) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return NewValidation("monetary amount must be a string of integer micros")
	}
	v, err := ParseMicros(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMicros parses a decimal string into a validated amount.
func ParseMicros(s string) (Micros, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, NewValidation(fmt.Sprintf("invalid monetary amount %q", s))
	}
	if v < 0 {
		return 0, NewValidation("monetary amount must be non-negative")
	}
	return Micros(v), nil
}

// String returns the wire form.
func (m Micros) String() string {
	return strconv.FormatInt(int64(m), 10)
}
