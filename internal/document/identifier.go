package document

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const oidKey = "$oid"

var ErrInvalidIdentifier = errors.New("invalid object identifier")

// CoerceIdentifiers replaces every object of the exact form {"$oid": "<hex>"}
// with a native identifier, at any depth.
func CoerceIdentifiers(v Value) (Value, error) {
	return v.Map(func(node Value) (Value, error) {
		if node.Kind != KindObject || len(node.Fields) != 1 || node.Fields[0].Key != oidKey {
			return node, nil
		}
		hex := node.Fields[0].Value
		if hex.Kind != KindString {
			return Value{}, fmt.Errorf("%w: $oid must be a string, got %s", ErrInvalidIdentifier, hex.Kind)
		}
		id, err := bson.ObjectIDFromHex(hex.str)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, hex.str)
		}
		return ObjectID(id), nil
	})
}

// StringifyIdentifiers replaces every native identifier with its hex string.
func StringifyIdentifiers(v Value) Value {
	out, _ := v.Map(func(node Value) (Value, error) {
		if node.Kind == KindObjectID {
			return String(node.oid.Hex()), nil
		}
		return node, nil
	})
	return out
}
