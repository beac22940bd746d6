package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// ParseJSON decodes one JSON value preserving object key order. Numbers
// without a fraction or exponent that fit in int64 become ints.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	value, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("unexpected data after top-level value")
	}
	return value, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return String(t), nil
	case json.Number:
		if n, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return Int(n), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Double(f), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	default:
		return Value{}, fmt.Errorf("unexpected token %v", tok)
	}
}

func decodeObject(dec *json.Decoder) (Value, error) {
	fields := make([]Field, 0)
	index := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is %T, want string", tok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		// Last duplicate wins, at the position of the first.
		if at, seen := index[key]; seen {
			fields[at].Value = value
			continue
		}
		index[key] = len(fields)
		fields = append(fields, Field{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Object(fields...), nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	items := make([]Value, 0)
	for dec.More() {
		value, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, value)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Array(items...), nil
}

// MarshalJSON writes objects in field order. Identifiers are written in
// extended JSON form ({"$oid": "<hex>"}); call StringifyIdentifiers first for
// plain strings.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		return writeMarshaled(buf, v.str)
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.num, 10))
	case KindDouble:
		// Non-finite doubles have no JSON literal; use the extended JSON names.
		switch {
		case math.IsNaN(v.dbl):
			buf.WriteString(`"NaN"`)
		case math.IsInf(v.dbl, 1):
			buf.WriteString(`"Infinity"`)
		case math.IsInf(v.dbl, -1):
			buf.WriteString(`"-Infinity"`)
		default:
			return writeMarshaled(buf, v.dbl)
		}
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.flag))
	case KindObjectID:
		buf.WriteString(`{"$oid":"`)
		buf.WriteString(v.oid.Hex())
		buf.WriteString(`"}`)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, field := range v.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeMarshaled(buf, field.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := field.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindOther:
		if ts, ok := v.other.(time.Time); ok {
			return writeMarshaled(buf, ts.UTC().Format(time.RFC3339Nano))
		}
		return writeMarshaled(buf, v.other)
	default:
		return fmt.Errorf("unknown value kind %d", v.Kind)
	}
	return nil
}

func writeMarshaled(buf *bytes.Buffer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(raw)
	return nil
}

// UnmarshalJSON lets Value sit directly in request and fixture structs.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
