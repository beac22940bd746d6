// Package storetest provides an in-memory store.Database for tests. It
// understands enough of the query language to exercise the pipeline:
// equality and comparison filters, top-level projections, ordered sorts,
// $set/$inc/$unset updates and $match/$sort/$skip/$limit/$project stages.
package storetest

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/chatdb/chatdb/internal/document"
	"github.com/chatdb/chatdb/internal/store"
)

type Memory struct {
	mu          sync.Mutex
	name        string
	collections map[string][]document.Value
	order       []string
	indexes     map[string][]string

	// Err, when set, is returned by every data operation.
	Err   error
	Calls []string
}

var _ store.Database = (*Memory)(nil)

func NewMemory(name string) *Memory {
	return &Memory{name: name, collections: map[string][]document.Value{}, indexes: map[string][]string{}}
}

// Seed adds documents to a collection, creating it when missing.
func (m *Memory) Seed(collection string, docs ...document.Value) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(collection)
	m.collections[collection] = append(m.collections[collection], docs...)
	return m
}

func (m *Memory) SetIndexes(collection string, names ...string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(collection)
	m.indexes[collection] = names
	return m
}

// Documents returns a snapshot of a collection.
func (m *Memory) Documents(collection string) []document.Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]document.Value(nil), m.collections[collection]...)
}

func (m *Memory) ensure(collection string) {
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = nil
		m.order = append(m.order, collection)
		m.indexes[collection] = []string{"_id_"}
	}
}

func (m *Memory) record(op, collection string) error {
	m.Calls = append(m.Calls, op+" "+collection)
	return m.Err
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) ListCollections(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("listCollections", ""); err != nil {
		return nil, err
	}
	return append([]string(nil), m.order...), nil
}

func (m *Memory) Sample(_ context.Context, collection string, limit int64) ([]document.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("sample", collection); err != nil {
		return nil, err
	}
	docs := m.collections[collection]
	if limit > 0 && int64(len(docs)) > limit {
		docs = docs[:limit]
	}
	return append([]document.Value(nil), docs...), nil
}

func (m *Memory) IndexNames(_ context.Context, collection string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("indexes", collection); err != nil {
		return nil, err
	}
	return append([]string(nil), m.indexes[collection]...), nil
}

func (m *Memory) Find(_ context.Context, collection string, query store.FindQuery) ([]document.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("find", collection); err != nil {
		return nil, err
	}
	docs, err := filterDocs(m.collections[collection], query.Filter)
	if err != nil {
		return nil, err
	}
	sortDocs(docs, query.Sort)
	docs = window(docs, query.Skip, query.Limit)
	return project(docs, query.Projection), nil
}

func (m *Memory) Aggregate(_ context.Context, collection string, pipeline []document.Value) ([]document.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("aggregate", collection); err != nil {
		return nil, err
	}
	docs := append([]document.Value(nil), m.collections[collection]...)
	for _, stage := range pipeline {
		if len(stage.Fields) != 1 {
			return nil, fmt.Errorf("pipeline stage must have exactly one operator")
		}
		op, arg := stage.Fields[0].Key, stage.Fields[0].Value
		switch op {
		case "$match":
			filtered, err := filterDocs(docs, arg)
			if err != nil {
				return nil, err
			}
			docs = filtered
		case "$sort":
			keys := make([]store.SortKey, 0, len(arg.Fields))
			for _, field := range arg.Fields {
				n, _ := field.Value.Number()
				keys = append(keys, store.SortKey{Field: field.Key, Direction: int(n)})
			}
			sortDocs(docs, keys)
		case "$skip":
			n, _ := arg.Number()
			docs = window(docs, int64(n), 0)
		case "$limit":
			n, _ := arg.Number()
			docs = window(docs, 0, int64(n))
		case "$project":
			docs = project(docs, arg)
		default:
			return nil, fmt.Errorf("unsupported pipeline stage %s", op)
		}
	}
	return docs, nil
}

func (m *Memory) InsertOne(_ context.Context, collection string, doc document.Value) (document.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("insertOne", collection); err != nil {
		return document.Value{}, err
	}
	m.ensure(collection)
	stored, id := withID(doc)
	m.collections[collection] = append(m.collections[collection], stored)
	return id, nil
}

func (m *Memory) InsertMany(_ context.Context, collection string, docs []document.Value) ([]document.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("insertMany", collection); err != nil {
		return nil, err
	}
	m.ensure(collection)
	ids := make([]document.Value, 0, len(docs))
	for _, doc := range docs {
		stored, id := withID(doc)
		m.collections[collection] = append(m.collections[collection], stored)
		ids = append(ids, id)
	}
	return ids, nil
}

func withID(doc document.Value) (document.Value, document.Value) {
	if id, ok := doc.Get("_id"); ok {
		return doc, id
	}
	id := document.ObjectID(bson.NewObjectID())
	fields := append([]document.Field{document.F("_id", id)}, doc.Fields...)
	return document.Object(fields...), id
}

func (m *Memory) UpdateOne(_ context.Context, collection string, filter, update document.Value) (store.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("updateOne", collection); err != nil {
		return store.UpdateResult{}, err
	}
	return m.update(collection, filter, update, false)
}

func (m *Memory) UpdateMany(_ context.Context, collection string, filter, update document.Value) (store.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("updateMany", collection); err != nil {
		return store.UpdateResult{}, err
	}
	return m.update(collection, filter, update, true)
}

func (m *Memory) update(collection string, filter, update document.Value, many bool) (store.UpdateResult, error) {
	var result store.UpdateResult
	docs := m.collections[collection]
	for i, doc := range docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return store.UpdateResult{}, err
		}
		if !ok {
			continue
		}
		result.Matched++
		updated, err := applyUpdate(doc, update)
		if err != nil {
			return store.UpdateResult{}, err
		}
		if marshal(updated) != marshal(doc) {
			result.Modified++
		}
		docs[i] = updated
		if !many {
			break
		}
	}
	return result, nil
}

func applyUpdate(doc, update document.Value) (document.Value, error) {
	for _, op := range update.Fields {
		switch op.Key {
		case "$set":
			for _, field := range op.Value.Fields {
				doc = doc.Set(field.Key, field.Value)
			}
		case "$inc":
			for _, field := range op.Value.Fields {
				current, _ := doc.Get(field.Key)
				base, _ := current.Number()
				delta, _ := field.Value.Number()
				if current.Kind != document.KindDouble && field.Value.Kind == document.KindInt {
					doc = doc.Set(field.Key, document.Int(int64(base)+field.Value.Int64()))
				} else {
					doc = doc.Set(field.Key, document.Double(base+delta))
				}
			}
		case "$unset":
			fields := make([]document.Field, 0, len(doc.Fields))
			for _, field := range doc.Fields {
				if !op.Value.Has(field.Key) {
					fields = append(fields, field)
				}
			}
			doc = document.Object(fields...)
		default:
			return document.Value{}, fmt.Errorf("unsupported update operator %s", op.Key)
		}
	}
	return doc, nil
}

func (m *Memory) DeleteOne(_ context.Context, collection string, filter document.Value) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("deleteOne", collection); err != nil {
		return 0, err
	}
	return m.delete(collection, filter, false)
}

func (m *Memory) DeleteMany(_ context.Context, collection string, filter document.Value) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("deleteMany", collection); err != nil {
		return 0, err
	}
	return m.delete(collection, filter, true)
}

func (m *Memory) delete(collection string, filter document.Value, many bool) (int64, error) {
	var deleted int64
	kept := make([]document.Value, 0, len(m.collections[collection]))
	for _, doc := range m.collections[collection] {
		ok, err := matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok && (many || deleted == 0) {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	m.collections[collection] = kept
	return deleted, nil
}

func filterDocs(docs []document.Value, filter document.Value) ([]document.Value, error) {
	out := make([]document.Value, 0, len(docs))
	for _, doc := range docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func matches(doc, filter document.Value) (bool, error) {
	for _, cond := range filter.Fields {
		actual, present := lookup(doc, cond.Key)
		if !cond.Value.IsObject() || len(cond.Value.Fields) == 0 || !strings.HasPrefix(cond.Value.Fields[0].Key, "$") {
			if !present || compare(actual, cond.Value) != 0 {
				return false, nil
			}
			continue
		}
		for _, op := range cond.Value.Fields {
			ok, err := evalOperator(op.Key, actual, present, op.Value)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

func evalOperator(op string, actual document.Value, present bool, operand document.Value) (bool, error) {
	switch op {
	case "$eq":
		return present && compare(actual, operand) == 0, nil
	case "$ne":
		return !present || compare(actual, operand) != 0, nil
	case "$gt":
		return present && compare(actual, operand) > 0, nil
	case "$gte":
		return present && compare(actual, operand) >= 0, nil
	case "$lt":
		return present && compare(actual, operand) < 0, nil
	case "$lte":
		return present && compare(actual, operand) <= 0, nil
	case "$in":
		for _, item := range operand.Items {
			if present && compare(actual, item) == 0 {
				return true, nil
			}
		}
		return false, nil
	case "$exists":
		return present == operand.Boolean(), nil
	default:
		return false, fmt.Errorf("unsupported filter operator %s", op)
	}
}

func lookup(doc document.Value, path string) (document.Value, bool) {
	current := doc
	for _, part := range strings.Split(path, ".") {
		next, ok := current.Get(part)
		if !ok {
			return document.Value{}, false
		}
		current = next
	}
	return current, true
}

// compare orders values of the same family; mismatched kinds order by kind.
func compare(a, b document.Value) int {
	if an, ok := a.Number(); ok {
		if bn, ok := b.Number(); ok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
	}
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case document.KindNull:
		return 0
	case document.KindString:
		return strings.Compare(a.Str(), b.Str())
	case document.KindBool:
		switch {
		case a.Boolean() == b.Boolean():
			return 0
		case !a.Boolean():
			return -1
		default:
			return 1
		}
	case document.KindObjectID:
		ai, bi := a.OID(), b.OID()
		return bytes.Compare(ai[:], bi[:])
	default:
		return strings.Compare(marshal(a), marshal(b))
	}
}

func sortDocs(docs []document.Value, keys []store.SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			left, _ := lookup(docs[i], key.Field)
			right, _ := lookup(docs[j], key.Field)
			c := compare(left, right)
			if c == 0 {
				continue
			}
			if key.Direction < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func window(docs []document.Value, skip, limit int64) []document.Value {
	if skip > 0 {
		if skip >= int64(len(docs)) {
			return []document.Value{}
		}
		docs = docs[skip:]
	}
	if limit > 0 && int64(len(docs)) > limit {
		docs = docs[:limit]
	}
	return docs
}

// project keeps included top-level fields (and _id unless excluded), or
// drops excluded ones when the projection only excludes. String values of the
// form "$path" rename a nested field.
func project(docs []document.Value, projection document.Value) []document.Value {
	if !projection.IsObject() || projection.IsEmpty() {
		return docs
	}
	inclusive := false
	for _, field := range projection.Fields {
		if field.Key != "_id" && includes(field.Value) {
			inclusive = true
		}
	}
	out := make([]document.Value, 0, len(docs))
	for _, doc := range docs {
		var fields []document.Field
		if inclusive {
			if id, ok := doc.Get("_id"); ok {
				if spec, set := projection.Get("_id"); !set || includes(spec) {
					fields = append(fields, document.F("_id", id))
				}
			}
			for _, field := range projection.Fields {
				if field.Key == "_id" {
					continue
				}
				if field.Value.Kind == document.KindString && strings.HasPrefix(field.Value.Str(), "$") {
					if value, ok := lookup(doc, strings.TrimPrefix(field.Value.Str(), "$")); ok {
						fields = append(fields, document.F(field.Key, value))
					}
					continue
				}
				if includes(field.Value) {
					if value, ok := lookup(doc, field.Key); ok {
						fields = append(fields, document.F(field.Key, value))
					}
				}
			}
		} else {
			for _, field := range doc.Fields {
				if spec, set := projection.Get(field.Key); set && !includes(spec) {
					continue
				}
				fields = append(fields, field)
			}
		}
		out = append(out, document.Object(fields...))
	}
	return out
}

func includes(spec document.Value) bool {
	switch spec.Kind {
	case document.KindBool:
		return spec.Boolean()
	case document.KindString:
		return true
	default:
		n, ok := spec.Number()
		return ok && n != 0
	}
}

func marshal(v document.Value) string {
	raw, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(raw)
}
