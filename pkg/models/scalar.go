package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/guregu/null/v6"
)

// Text is a display string the model may also write as a bare number or
// boolean. Non-string scalars keep their literal JSON text, so 28.4 becomes
// "28.4". null decodes to the empty string. It always encodes as a string.
type Text string

func (t Text) String() string { return string(t) }

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	s, _, err := scalarText(data)
	if err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

// NullText is a nullable Text. null leaves it invalid and it encodes as
// null when invalid.
type NullText null.String

// NullTextFrom returns a valid NullText holding s.
func NullTextFrom(s string) NullText {
	return NullText(null.StringFrom(s))
}

// ValueOrZero returns the text if valid, otherwise "".
func (t NullText) ValueOrZero() string {
	return null.String(t).ValueOrZero()
}

// MarshalJSON implements json.Marshaler.
func (t NullText) MarshalJSON() ([]byte, error) {
	return null.String(t).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *NullText) UnmarshalJSON(data []byte) error {
	s, valid, err := scalarText(data)
	if err != nil {
		return err
	}
	*t = NullText(null.NewString(s, valid))
	return nil
}

// scalarText returns the text of a JSON scalar and whether it was non-null.
func scalarText(data []byte) (string, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", false, fmt.Errorf("models: empty JSON value")
	}
	switch c := data[0]; {
	case c == 'n' && bytes.Equal(data, []byte("null")):
		return "", false, nil
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false, fmt.Errorf("models: decode string: %w", err)
		}
		return s, true, nil
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		return string(data), true, nil
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return "", false, fmt.Errorf("models: decode number: %w", err)
		}
		return n.String(), true, nil
	}
	return "", false, fmt.Errorf("models: want a string or scalar, got %.20s", data)
}
