// Package document models schemaless store documents as a recursive value
// type: scalars, arrays of values and objects of ordered fields.
package document

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindDouble
	KindBool
	KindObjectID
	KindArray
	KindObject
	// KindOther holds store-native scalars without a dedicated kind (dates,
	// decimals, binary payloads).
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindBool:
		return "boolean"
	case KindObjectID:
		return "ObjectId"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

type Field struct {
	Key   string
	Value Value
}

// Value is a document node. Items is set for arrays, Fields for objects; the
// scalar payload is only reachable through the typed accessors.
type Value struct {
	Kind   Kind
	Items  []Value
	Fields []Field

	str   string
	num   int64
	dbl   float64
	flag  bool
	oid   bson.ObjectID
	other any
}

func Null() Value { return Value{Kind: KindNull} }
func String(s string) Value { return Value{Kind: KindString, str: s} }
func Int(n int64) Value { return Value{Kind: KindInt, num: n} }
func Double(f float64) Value { return Value{Kind: KindDouble, dbl: f} }
func Bool(b bool) Value { return Value{Kind: KindBool, flag: b} }
func ObjectID(id bson.ObjectID) Value { return Value{Kind: KindObjectID, oid: id} }
func Other(v any) Value { return Value{Kind: KindOther, other: v} }

func Array(items ...Value) Value {
	return Value{Kind: KindArray, Items: items}
}

func Object(fields ...Field) Value {
	return Value{Kind: KindObject, Fields: fields}
}

// F builds a field; handy for composing literal documents.
func F(key string, value Value) Field {
	return Field{Key: key, Value: value}
}

func (v Value) Str() string { return v.str }
func (v Value) Int64() int64 { return v.num }
func (v Value) Float64() float64 { return v.dbl }
func (v Value) Boolean() bool { return v.flag }
func (v Value) OID() bson.ObjectID { return v.oid }
func (v Value) Raw() any { return v.other }
func (v Value) IsNull() bool { return v.Kind == KindNull }
func (v Value) IsObject() bool { return v.Kind == KindObject }
func (v Value) IsArray() bool { return v.Kind == KindArray }

// Number reports the numeric payload of int and double values.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.num), true
	case KindDouble:
		return v.dbl, true
	default:
		return 0, false
	}
}

// IsEmpty is true for null, empty objects and empty arrays.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindObject:
		return len(v.Fields) == 0
	case KindArray:
		return len(v.Items) == 0
	default:
		return false
	}
}

// Get returns the value of key on an object.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	for _, field := range v.Fields {
		if field.Key == key {
			return field.Value, true
		}
	}
	return Value{}, false
}

func (v Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Keys returns object keys in document order.
func (v Value) Keys() []string {
	if v.Kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.Fields))
	for _, field := range v.Fields {
		keys = append(keys, field.Key)
	}
	return keys
}

// Set returns a copy of the object with key replaced or appended.
func (v Value) Set(key string, value Value) Value {
	fields := make([]Field, 0, len(v.Fields)+1)
	replaced := false
	for _, field := range v.Fields {
		if field.Key == key {
			fields = append(fields, Field{Key: key, Value: value})
			replaced = true
			continue
		}
		fields = append(fields, field)
	}
	if !replaced {
		fields = append(fields, Field{Key: key, Value: value})
	}
	return Object(fields...)
}

// Map applies fn bottom-up to every node of the tree and returns the
// rebuilt value.
func (v Value) Map(fn func(Value) (Value, error)) (Value, error) {
	switch v.Kind {
	case KindArray:
		items := make([]Value, len(v.Items))
		for i, item := range v.Items {
			mapped, err := item.Map(fn)
			if err != nil {
				return Value{}, err
			}
			items[i] = mapped
		}
		return fn(Array(items...))
	case KindObject:
		fields := make([]Field, len(v.Fields))
		for i, field := range v.Fields {
			mapped, err := field.Value.Map(fn)
			if err != nil {
				return Value{}, err
			}
			fields[i] = Field{Key: field.Key, Value: mapped}
		}
		return fn(Object(fields...))
	default:
		return fn(v)
	}
}
