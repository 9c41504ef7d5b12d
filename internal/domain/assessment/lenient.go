package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var nullLiteral = []byte("null")

// Number decodes a JSON number, a numeric string or null. Unparseable strings
// decode to zero.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, nullLiteral) {
		*n = 0
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(parseLooseFloat(s))
		return nil
	case 't', 'f':
		if bytes.Equal(b, []byte("true")) {
			*n = 1
		} else {
			*n = 0
		}
		return nil
	case '{':
		*n = numberFromObject(b)
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil || len(items) == 0 {
			*n = 0
			return nil
		}
		return n.UnmarshalJSON(items[0])
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decode number: %w", err)
	}
	*n = Number(f)
	return nil
}

var numberKeys = []string{"value", "score", "percentage", "total"}

// numberFromObject reads {"value": 72} style wrappers; anything else is zero.
func numberFromObject(b []byte) Number {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return 0
	}
	for _, k := range numberKeys {
		v, ok := m[k]
		if !ok {
			continue
		}
		var n Number
		if err := n.UnmarshalJSON(v); err == nil {
			return n
		}
	}
	return 0
}

// Float returns the value as float64.
func (n Number) Float() float64 { return float64(n) }

// Int returns the value rounded to the nearest integer.
func (n Number) Int() int {
	if n < 0 {
		return int(n - 0.5)
	}
	return int(n + 0.5)
}

// parseLooseFloat reads the leading number of strings such as "85", "85%" or "72/100".
func parseLooseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return f
}

// Text decodes a JSON string, number, boolean or null into a string.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, nullLiteral) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		*t = Text(compact(b))
		return nil
	}
	*t = Text(string(b))
	return nil
}

// String implements fmt.Stringer.
func (t Text) String() string { return string(t) }

// Or returns t, or def when t is blank.
func (t Text) Or(def string) string {
	if strings.TrimSpace(string(t)) == "" {
		return def
	}
	return string(t)
}

// TextList decodes an array of scalars, a single string or null into a list of
// strings. Objects inside an array are flattened to their most descriptive field.
type TextList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *TextList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, nullLiteral) {
		*l = TextList{}
		return nil
	}
	if b[0] != '[' {
		var t Text
		if err := t.UnmarshalJSON(b); err != nil {
			return err
		}
		if strings.TrimSpace(string(t)) == "" {
			*l = TextList{}
		} else {
			*l = TextList{string(t)}
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode text list: %w", err)
	}
	out := make(TextList, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '{' {
			if s := describeObject(item); s != "" {
				out = append(out, s)
			}
			continue
		}
		var t Text
		if err := t.UnmarshalJSON(item); err != nil {
			return err
		}
		if s := strings.TrimSpace(string(t)); s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

var describeKeys = []string{"text", "recommendation", "description", "title", "message", "name"}

func describeObject(b []byte) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return ""
	}
	for _, k := range describeKeys {
		if v, ok := m[k]; ok {
			var t Text
			if err := t.UnmarshalJSON(v); err == nil && t != "" {
				return string(t)
			}
		}
	}
	return compact(b)
}

// Flag decodes booleans encoded as true/false, "yes"/"no", "true"/"false" or 0/1.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(b []byte) error {
	var t Text
	if err := t.UnmarshalJSON(b); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(string(t))) {
	case "true", "yes", "1", "y", "on":
		*f = true
	default:
		*f = false
	}
	return nil
}

// UnmarshalJSON accepts the usual object form, a list of class names such as
// ["lowercase", "digits"], or a description string such as "upper, lower and
// numbers". Unrecognized values decode to no classes.
func (c *CharacterClasses) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*c = CharacterClasses{}
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '{':
		type plain CharacterClasses
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return nil
		}
		*c = CharacterClasses(p)
	case '[', '"':
		var names TextList
		if err := names.UnmarshalJSON(b); err != nil {
			return nil
		}
		for _, name := range names {
			c.markFrom(name)
		}
	}
	return nil
}

func (c *CharacterClasses) markFrom(desc string) {
	desc = strings.ToLower(desc)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(desc, w) {
				return true
			}
		}
		return false
	}
	if has("lower") {
		c.Lowercase = true
	}
	if has("upper", "capital") {
		c.Uppercase = true
	}
	if has("digit", "number", "numeric") {
		c.Digits = true
	}
	if has("special", "symbol", "punctuation") {
		c.Special = true
	}
}

func compact(b []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return string(b)
	}
	return buf.String()
}
