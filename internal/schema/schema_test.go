package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/chatdb/chatdb/internal/document"
	"github.com/chatdb/chatdb/internal/store/storetest"
)

func mustParse(t *testing.T, raw string) document.Value {
	t.Helper()
	v, err := document.ParseJSON([]byte(raw))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	return v
}

func TestInferNestedObject(t *testing.T) {
	db := storetest.NewMemory("shop").Seed("people", mustParse(t, `{"_id": 1, "name": "A", "address": {"city": "X"}}`))

	descriptors, err := Inferencer{}.Infer(context.Background(), db, []string{"people"})
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	want := map[string]TypeTag{
		"_id":          TypeInt,
		"name":         TypeString,
		"address":      TypeObject,
		"address.city": TypeString,
	}
	if diff := cmp.Diff(want, descriptors["people"].Fields); diff != "" {
		t.Fatalf("Fields mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"_id_"}, descriptors["people"].Indexes); diff != "" {
		t.Fatalf("Indexes mismatch (-want +got):\n%s", diff)
	}
}

func TestInferSkipsEmptyCollections(t *testing.T) {
	db := storetest.NewMemory("shop").Seed("empty").Seed("users", mustParse(t, `{"name": "A"}`))

	descriptors, err := Inferencer{}.Infer(context.Background(), db, []string{"empty", "users", "missing"})
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if _, ok := descriptors["empty"]; ok {
		t.Fatalf("empty collection should produce no descriptor")
	}
	if _, ok := descriptors["missing"]; ok {
		t.Fatalf("missing collection should produce no descriptor")
	}
	if _, ok := descriptors["users"]; !ok {
		t.Fatalf("users descriptor missing")
	}
}

func TestInferHonoursSampleSize(t *testing.T) {
	db := storetest.NewMemory("shop")
	for i := 0; i < 30; i++ {
		db.Seed("events", document.Object(document.F("n", document.Int(int64(i)))))
	}
	db.Seed("events", mustParse(t, `{"late_field": true}`))

	descriptors, err := Inferencer{SampleSize: 5}.Infer(context.Background(), db, []string{"events"})
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if _, ok := descriptors["events"].Fields["late_field"]; ok {
		t.Fatalf("field beyond the sample window should not be inferred")
	}
}

func TestInferPropagatesStoreErrors(t *testing.T) {
	db := storetest.NewMemory("shop").Seed("users", mustParse(t, `{"a": 1}`))
	db.Err = errors.New("connection reset")

	if _, err := (Inferencer{}).Infer(context.Background(), db, []string{"users"}); err == nil {
		t.Fatalf("Infer() expected error")
	}
}

func TestFlattenArraysAndKinds(t *testing.T) {
	doc := mustParse(t, `{
		"tags": ["a", "b"],
		"empty": [],
		"items": [{"sku": "x", "qty": 2, "meta": {"gift": true}}, {"other": 1}],
		"price": 9.99,
		"gone": null
	}`)
	doc = doc.Set("owner_id", document.ObjectID(bson.NewObjectID()))

	fields := map[string]TypeTag{}
	Flatten(doc, fields)
	want := map[string]TypeTag{
		"tags":            TypeArray,
		"empty":           TypeArray,
		"items":           TypeArrayObject,
		"items.sku":       TypeString,
		"items.qty":       TypeInt,
		"items.meta":      TypeObject,
		"items.meta.gift": TypeBoolean,
		"price":           TypeDouble,
		"gone":            TypeNull,
		"owner_id":        TypeObjectID,
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("Flatten() mismatch (-want +got):\n%s", diff)
	}
}

func TestFlattenKeepsFirstNonNullTag(t *testing.T) {
	fields := map[string]TypeTag{}
	Flatten(mustParse(t, `{"a": null, "b": 1}`), fields)
	Flatten(mustParse(t, `{"a": "x", "b": "y"}`), fields)
	if fields["a"] != TypeString {
		t.Fatalf("a = %s, want string", fields["a"])
	}
	if fields["b"] != TypeInt {
		t.Fatalf("b = %s, want int", fields["b"])
	}
}

func TestRelationships(t *testing.T) {
	descriptors := map[string]*Descriptor{
		"users": {Collection: "users", Fields: map[string]TypeTag{"_id": TypeObjectID, "name": TypeString}},
		"orders": {Collection: "orders", Fields: map[string]TypeTag{
			"_id":        TypeObjectID,
			"user_id":    TypeObjectID,
			"product_id": TypeString,
			"ghost_id":   TypeObjectID,
		}},
		"reviews": {Collection: "reviews", Fields: map[string]TypeTag{
			"orders_id":    TypeObjectID,
			"meta.user_id": TypeObjectID,
			"reviewer":     TypeObjectID,
		}},
	}

	got := Relationships(descriptors)
	want := []Relationship{
		{From: "orders.user_id", To: "users._id"},
		{From: "reviews.meta.user_id", To: "users._id"},
		{From: "reviews.orders_id", To: "orders._id"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Relationships() mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldNamesSorted(t *testing.T) {
	d := &Descriptor{Fields: map[string]TypeTag{"b": TypeInt, "a.c": TypeInt, "a": TypeObject}}
	if diff := cmp.Diff([]string{"a", "a.c", "b"}, d.FieldNames()); diff != "" {
		t.Fatalf("FieldNames() mismatch (-want +got):\n%s", diff)
	}
}
