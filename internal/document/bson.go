package document

import (
	"math"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// FromBSON converts a decoded driver value into a Value. Unordered maps are
// emitted with sorted keys.
func FromBSON(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bson.D:
		fields := make([]Field, 0, len(t))
		for _, elem := range t {
			fields = append(fields, Field{Key: elem.Key, Value: FromBSON(elem.Value)})
		}
		return Object(fields...)
	case bson.M:
		return fromMap(t)
	case map[string]any:
		return fromMap(t)
	case bson.A:
		return fromSlice(t)
	case []any:
		return fromSlice(t)
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case int:
		return Int(int64(t))
	case float64:
		return Double(t)
	case float32:
		return Double(float64(t))
	case bson.ObjectID:
		return ObjectID(t)
	case bson.DateTime:
		return Other(t.Time().UTC())
	case bson.Decimal128:
		return Other(t.String())
	default:
		return Other(t)
	}
}

func fromMap(m map[string]any) Value {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fields := make([]Field, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, Field{Key: key, Value: FromBSON(m[key])})
	}
	return Object(fields...)
}

func fromSlice(items []any) Value {
	values := make([]Value, 0, len(items))
	for _, item := range items {
		values = append(values, FromBSON(item))
	}
	return Array(values...)
}

// ToBSON converts a Value into the driver's ordered representation. Ints that
// fit 32 bits are sent as int32, the width a shell or pymongo client would use.
func ToBSON(v Value) any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindString:
		return v.str
	case KindInt:
		if v.num >= math.MinInt32 && v.num <= math.MaxInt32 {
			return int32(v.num)
		}
		return v.num
	case KindDouble:
		return v.dbl
	case KindBool:
		return v.flag
	case KindObjectID:
		return v.oid
	case KindArray:
		items := make(bson.A, 0, len(v.Items))
		for _, item := range v.Items {
			items = append(items, ToBSON(item))
		}
		return items
	case KindObject:
		return ToD(v)
	default:
		return v.other
	}
}

// ToD converts an object into bson.D. Non-objects yield an empty document.
func ToD(v Value) bson.D {
	doc := make(bson.D, 0, len(v.Fields))
	if v.Kind != KindObject {
		return doc
	}
	for _, field := range v.Fields {
		doc = append(doc, bson.E{Key: field.Key, Value: ToBSON(field.Value)})
	}
	return doc
}
