package grid

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// The durable form of an attribute list is a JSON array of [key, value]
// arrays, e.g. [["unit","tank"],["health",5]]. Floats always carry a
// fraction or exponent so that ints and floats decode back to their
// original kind.

var errInvalidValue = errors.New("invalid attribute value")

// EncodeAttributes returns the text encoding of attrs. A nil list encodes
// the same as an empty one.
func EncodeAttributes(attrs Attributes) (string, error) {
	if attrs == nil {
		attrs = Attributes{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	return string(data), nil
}

// DecodeAttributes parses the output of EncodeAttributes. The result is
// never nil on success.
func DecodeAttributes(text string) (Attributes, error) {
	var attrs Attributes
	if err := json.Unmarshal([]byte(text), &attrs); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if attrs == nil {
		return nil, fmt.Errorf("decode attributes: expected array, got %q", text)
	}
	return attrs, nil
}

func (p Pair) MarshalJSON() ([]byte, error) {
	key, err := json.Marshal(p.Key)
	if err != nil {
		return nil, err
	}
	val, err := p.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", p.Key, err)
	}
	buf := make([]byte, 0, len(key)+len(val)+3)
	buf = append(buf, '[')
	buf = append(buf, key...)
	buf = append(buf, ',')
	buf = append(buf, val...)
	buf = append(buf, ']')
	return buf, nil
}

func (p *Pair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("attribute pair must have 2 elements, got %d", len(raw))
	}
	var key string
	if err := json.Unmarshal(raw[0], &key); err != nil {
		return fmt.Errorf("attribute key: %w", err)
	}
	var v Value
	if err := v.UnmarshalJSON(raw[1]); err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	p.Key = key
	p.Value = v
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if s, ok := v.AsString(); ok {
		return json.Marshal(s)
	}
	if i, ok := v.AsInt(); ok {
		return strconv.AppendInt(nil, i, 10), nil
	}
	if f, ok := v.AsFloat(); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %v has no JSON form", errInvalidValue, f)
		}
		return []byte(formatFloat(f)), nil
	}
	if b, ok := v.AsBool(); ok {
		return strconv.AppendBool(nil, b), nil
	}
	return nil, fmt.Errorf("%w: zero value", errInvalidValue)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", errInvalidValue)
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case c == 't' || c == 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case c == '-' || (c >= '0' && c <= '9'):
		text := string(data)
		if strings.ContainsAny(text, ".eE") {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return fmt.Errorf("%w: %v", errInvalidValue, err)
			}
			*v = FloatValue(f)
			return nil
		}
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %v", errInvalidValue, err)
		}
		*v = IntValue(i)
	default:
		return fmt.Errorf("%w: unsupported JSON %s", errInvalidValue, data)
	}
	return nil
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
