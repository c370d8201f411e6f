package entity

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Scalar is a record value that arrives as a JSON string, number or bool.
// Numbers keep their source spelling so 940 renders as "940". null, missing
// values and anything that is not a scalar (arrays, objects) decode to the
// empty string.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")), !IsScalarJSON(data):
		*s = ""
	case data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*s = Scalar(data)
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return err
		}
		*s = Scalar(num.String())
	}
	return nil
}

// IsScalarJSON reports whether data is a JSON string, number, bool or null.
func IsScalarJSON(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] != '[' && data[0] != '{'
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(s))), nil
}

func (s Scalar) String() string { return string(s) }
