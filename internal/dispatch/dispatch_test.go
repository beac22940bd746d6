package dispatch

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/chatdb/chatdb/internal/command"
	"github.com/chatdb/chatdb/internal/document"
	"github.com/chatdb/chatdb/internal/store/storetest"
)

func person(name string, age int64) document.Value {
	return document.Object(document.F("name", document.String(name)), document.F("age", document.Int(age)))
}

func peopleDB() *storetest.Memory {
	return storetest.NewMemory("shop").Seed("users",
		person("Carol", 30),
		person("Alice", 41),
		person("Bob", 30),
		person("Dave", 25),
		person("Aaron", 30),
	)
}

func names(docs []document.Value) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		name, _ := doc.Get("name")
		out = append(out, name.Str())
	}
	return out
}

func TestQuerySortAppliesKeysInOrder(t *testing.T) {
	q, err := command.ParseQuery(`{"collection": "users", "command": {"find": {"filter": {}, "sort": {"age": -1, "name": 1}}}}`)
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	docs, err := Dispatcher{}.Query(context.Background(), peopleDB(), q)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	want := []string{"Alice", "Aaron", "Bob", "Carol", "Dave"}
	got := names(docs)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Query() order = %v, want %v", got, want)
		}
	}
}

func TestQueryFindFilterSkipLimitProjection(t *testing.T) {
	q, err := command.ParseQuery(`{"collection": "users", "command": {"find": {"filter": {"age": 30}, "projection": {"name": 1, "_id": 0}, "sort": {"name": 1}, "skip": 1, "limit": 1}}}`)
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	docs, err := Dispatcher{}.Query(context.Background(), peopleDB(), q)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Query() returned %d docs", len(docs))
	}
	if got := docs[0].Keys(); len(got) != 1 || got[0] != "name" {
		t.Fatalf("projected keys = %v", got)
	}
	if got := names(docs); got[0] != "Bob" {
		t.Fatalf("Query() = %v, want [Bob]", got)
	}
}

func TestQueryCoercesAndStringifiesIdentifiers(t *testing.T) {
	userID := bson.NewObjectID()
	otherID := bson.NewObjectID()
	db := storetest.NewMemory("shop").Seed("orders",
		document.Object(document.F("user_id", document.ObjectID(userID)), document.F("amount", document.Int(10))),
		document.Object(document.F("user_id", document.ObjectID(otherID)), document.F("amount", document.Int(20))),
	)
	q, err := command.ParseQuery(`{"collection": "orders", "command": {"find": {"filter": {"user_id": {"$oid": "` + userID.Hex() + `"}}}}}`)
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	docs, err := Dispatcher{}.Query(context.Background(), db, q)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Query() returned %d docs, want 1", len(docs))
	}
	got, _ := docs[0].Get("user_id")
	if got.Kind != document.KindString || got.Str() != userID.Hex() {
		t.Fatalf("user_id = %+v, want stringified %s", got, userID.Hex())
	}
}

func TestQueryAggregate(t *testing.T) {
	q, err := command.ParseQuery(`{"collection": "users", "command": {"aggregate": [{"$match": {"age": {"$gte": 30}}}, {"$sort": {"name": -1}}, {"$limit": 2}]}}`)
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	docs, err := Dispatcher{}.Query(context.Background(), peopleDB(), q)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got := names(docs); len(got) != 2 || got[0] != "Carol" || got[1] != "Bob" {
		t.Fatalf("Query() = %v", got)
	}
}

func TestQueryWrapsStoreErrors(t *testing.T) {
	db := peopleDB()
	db.Err = errors.New("socket closed")
	q, _ := command.ParseQuery(`{"collection": "users", "command": {"find": {}}}`)

	_, err := Dispatcher{}.Query(context.Background(), db, q)
	var storeErr *StoreOperationError
	if !errors.As(err, &storeErr) || storeErr.Operation != "find" || storeErr.Collection != "users" {
		t.Fatalf("Query() error = %v, want *StoreOperationError", err)
	}
	if !errors.Is(err, db.Err) {
		t.Fatalf("StoreOperationError should unwrap to the store error")
	}
}

func TestModifyRejectsEmptyDeleteFilterBeforeStore(t *testing.T) {
	for _, raw := range []string{
		`{"collection": "users", "action": "deleteOne", "filter": {}}`,
		`{"collection": "users", "action": "deleteMany"}`,
	} {
		db := peopleDB()
		m, err := command.ParseModify(raw)
		if err != nil {
			t.Fatalf("ParseModify() error = %v", err)
		}
		_, err = Dispatcher{}.Modify(context.Background(), db, m)
		if !errors.Is(err, command.ErrEmptyDeleteFilter) {
			t.Fatalf("Modify(%s) error = %v, want ErrEmptyDeleteFilter", raw, err)
		}
		if len(db.Calls) != 0 {
			t.Fatalf("store was touched: %v", db.Calls)
		}
		if got := len(db.Documents("users")); got != 5 {
			t.Fatalf("documents after rejected delete = %d", got)
		}
	}
}

func TestModifyDeleteCountsAndNote(t *testing.T) {
	db := peopleDB()
	m, _ := command.ParseModify(`{"collection": "users", "action": "deleteMany", "filter": {"age": 30}}`)
	result, err := Dispatcher{}.Modify(context.Background(), db, m)
	if err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if result.Deleted == nil || *result.Deleted != 3 || result.Note != "" {
		t.Fatalf("Modify() = %+v", result)
	}

	m, _ = command.ParseModify(`{"collection": "users", "action": "deleteOne", "filter": {"name": "Nobody"}}`)
	result, err = Dispatcher{}.Modify(context.Background(), db, m)
	if err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if result.Deleted == nil || *result.Deleted != 0 || result.Note != NoMatchNote {
		t.Fatalf("Modify() = %+v", result)
	}
}

func TestModifyUpdateCountsAndNote(t *testing.T) {
	db := peopleDB()
	m, _ := command.ParseModify(`{"collection": "users", "action": "updateMany", "filter": {"age": 30}, "update": {"$set": {"tier": "gold"}, "$inc": {"age": 1}}}`)
	result, err := Dispatcher{}.Modify(context.Background(), db, m)
	if err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if *result.Matched != 3 || *result.Modified != 3 || result.Action != command.ActionUpdateMany {
		t.Fatalf("Modify() = %+v", result)
	}
	if result.Deleted != nil {
		t.Fatalf("Deleted should be nil for updates")
	}

	m, _ = command.ParseModify(`{"collection": "users", "action": "updateOne", "filter": {"name": "Nobody"}, "update": {"$set": {"tier": "gold"}}}`)
	result, err = Dispatcher{}.Modify(context.Background(), db, m)
	if err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if *result.Matched != 0 || result.Note != NoMatchNote {
		t.Fatalf("Modify() = %+v", result)
	}
}

func TestModifyUpdateCoercesIdentifiers(t *testing.T) {
	id := bson.NewObjectID()
	db := storetest.NewMemory("shop").Seed("users", document.Object(document.F("_id", document.ObjectID(id)), document.F("name", document.String("A"))))
	m, _ := command.ParseModify(`{"collection": "users", "action": "updateOne", "filter": {"_id": {"$oid": "` + id.Hex() + `"}}, "update": {"$set": {"name": "B"}}}`)

	result, err := Dispatcher{}.Modify(context.Background(), db, m)
	if err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if *result.Matched != 1 || *result.Modified != 1 {
		t.Fatalf("Modify() = %+v", result)
	}
}

func TestModifyInsertEchoesIdentifiers(t *testing.T) {
	db := storetest.NewMemory("shop")
	userID := bson.NewObjectID()
	m, _ := command.ParseModify(`{"collection": "orders", "action": "insertOne", "data": {"user_id": {"$oid": "` + userID.Hex() + `"}, "amount": 12.5}}`)

	result, err := Dispatcher{}.Modify(context.Background(), db, m)
	if err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if result.InsertedID.Kind != document.KindString || len(result.InsertedID.Str()) != 24 {
		t.Fatalf("InsertedID = %+v", result.InsertedID)
	}
	echoed, _ := result.InsertedData.Get("user_id")
	if echoed.Str() != userID.Hex() {
		t.Fatalf("InsertedData.user_id = %+v", echoed)
	}
	if keys := result.InsertedData.Keys(); len(keys) != 3 || keys[0] != "_id" {
		t.Fatalf("InsertedData keys = %v, want _id first", keys)
	}
	if echoedID, _ := result.InsertedData.Get("_id"); echoedID.Kind != document.KindString || echoedID.Str() != result.InsertedID.Str() {
		t.Fatalf("InsertedData._id = %+v, want %s", echoedID, result.InsertedID.Str())
	}
	stored := db.Documents("orders")
	if len(stored) != 1 {
		t.Fatalf("stored %d documents", len(stored))
	}
	nativeID, _ := stored[0].Get("user_id")
	if nativeID.Kind != document.KindObjectID {
		t.Fatalf("stored user_id kind = %s, want native identifier", nativeID.Kind)
	}
}

func TestModifyInsertMany(t *testing.T) {
	db := storetest.NewMemory("shop")
	m, _ := command.ParseModify(`{"collection": "users", "action": "insertMany", "data": [{"name": "A"}, {"name": "B"}]}`)
	result, err := Dispatcher{}.Modify(context.Background(), db, m)
	if err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if len(result.InsertedIDs) != 2 || !result.InsertedData.IsArray() {
		t.Fatalf("Modify() = %+v", result)
	}
	for i, item := range result.InsertedData.Items {
		id, _ := item.Get("_id")
		if id.Str() != result.InsertedIDs[i].Str() {
			t.Fatalf("InsertedData[%d]._id = %+v, want %s", i, id, result.InsertedIDs[i].Str())
		}
	}
}

func TestModifyInsertKeepsCallerIdentifier(t *testing.T) {
	db := storetest.NewMemory("shop")
	m, _ := command.ParseModify(`{"collection": "users", "action": "insertOne", "data": {"_id": "ada", "name": "Ada"}}`)
	result, err := Dispatcher{}.Modify(context.Background(), db, m)
	if err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if got := result.InsertedData.Keys(); len(got) != 2 || got[0] != "_id" || result.InsertedID.Str() != "ada" {
		t.Fatalf("Modify() = %+v", result)
	}
}

func TestModifyInvalidIdentifierIsNotAStoreError(t *testing.T) {
	db := peopleDB()
	m, _ := command.ParseModify(`{"collection": "users", "action": "deleteOne", "filter": {"_id": {"$oid": "xyz"}}}`)
	_, err := Dispatcher{}.Modify(context.Background(), db, m)
	if !errors.Is(err, document.ErrInvalidIdentifier) {
		t.Fatalf("Modify() error = %v, want ErrInvalidIdentifier", err)
	}
	if len(db.Calls) != 0 {
		t.Fatalf("store was touched: %v", db.Calls)
	}
}

func TestModifyWrapsStoreErrors(t *testing.T) {
	db := peopleDB()
	db.Err = errors.New("not primary")
	m, _ := command.ParseModify(`{"collection": "users", "action": "insertOne", "data": {"name": "Z"}}`)
	_, err := Dispatcher{}.Modify(context.Background(), db, m)
	var storeErr *StoreOperationError
	if !errors.As(err, &storeErr) || storeErr.Operation != "insertOne" {
		t.Fatalf("Modify() error = %v, want *StoreOperationError", err)
	}
}

func TestModifyRejectsUnknownAction(t *testing.T) {
	_, err := Dispatcher{}.Modify(context.Background(), peopleDB(), command.Modify{Collection: "users", Action: "upsertAll"})
	var unsupported *command.UnsupportedActionError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Modify() error = %v, want *UnsupportedActionError", err)
	}
}
