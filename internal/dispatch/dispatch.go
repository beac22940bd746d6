// Package dispatch maps validated commands onto store operations.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chatdb/chatdb/internal/command"
	"github.com/chatdb/chatdb/internal/document"
	"github.com/chatdb/chatdb/internal/observability"
	"github.com/chatdb/chatdb/internal/store"
)

const NoMatchNote = "No documents matched the filter."

type StoreOperationError struct {
	Operation  string
	Collection string
	Err        error
}

func (e *StoreOperationError) Error() string {
	return fmt.Sprintf("store operation %s on %s failed: %v", e.Operation, e.Collection, e.Err)
}

func (e *StoreOperationError) Unwrap() error {
	return e.Err
}

// ModifyResult is the outcome of one modification. Count fields are nil
// when the action does not produce them.
type ModifyResult struct {
	Action       command.Action
	Matched      *int64
	Modified     *int64
	Deleted      *int64
	InsertedID   document.Value
	InsertedIDs  []document.Value
	InsertedData document.Value
	Note         string
}

type Dispatcher struct {
	Logger *slog.Logger
}

func (d Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// Query runs a find or aggregate and returns documents with identifiers
// stringified.
func (d Dispatcher) Query(ctx context.Context, db store.Database, q command.Query) ([]document.Value, error) {
	var (
		docs []document.Value
		err  error
	)
	switch q.Kind {
	case command.QueryFind:
		filter, coerceErr := document.CoerceIdentifiers(q.Find.Filter)
		if coerceErr != nil {
			return nil, coerceErr
		}
		sortKeys := make([]store.SortKey, 0, len(q.Find.Sort))
		for _, key := range q.Find.Sort {
			sortKeys = append(sortKeys, store.SortKey{Field: key.Field, Direction: key.Direction})
		}
		docs, err = db.Find(ctx, q.Collection, store.FindQuery{
			Filter:     filter,
			Projection: q.Find.Projection,
			Sort:       sortKeys,
			Limit:      q.Find.Limit,
			Skip:       q.Find.Skip,
		})
	case command.QueryAggregate:
		pipeline := make([]document.Value, 0, len(q.Pipeline))
		for _, stage := range q.Pipeline {
			coerced, coerceErr := document.CoerceIdentifiers(stage)
			if coerceErr != nil {
				return nil, coerceErr
			}
			pipeline = append(pipeline, coerced)
		}
		docs, err = db.Aggregate(ctx, q.Collection, pipeline)
	default:
		return nil, &command.UnsupportedActionError{Action: q.Kind.String()}
	}

	operation := q.Kind.String()
	observability.IncrementStoreOperation(operation, err)
	if err != nil {
		return nil, &StoreOperationError{Operation: operation, Collection: q.Collection, Err: err}
	}
	d.logger().DebugContext(ctx, "query_dispatched",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("operation", operation),
		slog.String("collection", q.Collection),
		slog.Int("documents", len(docs)),
	)

	out := make([]document.Value, 0, len(docs))
	for _, doc := range docs {
		out = append(out, document.StringifyIdentifiers(doc))
	}
	return out, nil
}

// Modify validates operands, coerces identifiers and runs exactly one write.
// Deletes without a filter are rejected before the store is touched.
func (d Dispatcher) Modify(ctx context.Context, db store.Database, m command.Modify) (ModifyResult, error) {
	if err := m.Validate(); err != nil {
		return ModifyResult{}, err
	}

	result, err := d.modify(ctx, db, m)
	observability.IncrementStoreOperation(string(m.Action), err)
	if err != nil {
		return ModifyResult{}, err
	}
	d.logger().InfoContext(ctx, "modify_dispatched",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("action", string(m.Action)),
		slog.String("collection", m.Collection),
	)
	return result, nil
}

func (d Dispatcher) modify(ctx context.Context, db store.Database, m command.Modify) (ModifyResult, error) {
	wrap := func(err error) error {
		return &StoreOperationError{Operation: string(m.Action), Collection: m.Collection, Err: err}
	}
	result := ModifyResult{Action: m.Action}

	switch m.Action {
	case command.ActionInsertOne:
		data, err := document.CoerceIdentifiers(m.Data)
		if err != nil {
			return ModifyResult{}, err
		}
		id, err := db.InsertOne(ctx, m.Collection, data)
		if err != nil {
			return ModifyResult{}, wrap(err)
		}
		result.InsertedID = document.StringifyIdentifiers(id)
		result.InsertedData = document.StringifyIdentifiers(withInsertedID(data, id))

	case command.ActionInsertMany:
		data, err := document.CoerceIdentifiers(m.Data)
		if err != nil {
			return ModifyResult{}, err
		}
		ids, err := db.InsertMany(ctx, m.Collection, data.Items)
		if err != nil {
			return ModifyResult{}, wrap(err)
		}
		result.InsertedIDs = make([]document.Value, 0, len(ids))
		echoed := make([]document.Value, 0, len(data.Items))
		for i, item := range data.Items {
			if i < len(ids) {
				item = withInsertedID(item, ids[i])
			}
			echoed = append(echoed, item)
		}
		for _, id := range ids {
			result.InsertedIDs = append(result.InsertedIDs, document.StringifyIdentifiers(id))
		}
		result.InsertedData = document.StringifyIdentifiers(document.Array(echoed...))

	case command.ActionUpdateOne, command.ActionUpdateMany:
		filter, err := coerceFilter(m.Filter)
		if err != nil {
			return ModifyResult{}, err
		}
		update, err := document.CoerceIdentifiers(m.Update)
		if err != nil {
			return ModifyResult{}, err
		}
		var counts store.UpdateResult
		if m.Action == command.ActionUpdateOne {
			counts, err = db.UpdateOne(ctx, m.Collection, filter, update)
		} else {
			counts, err = db.UpdateMany(ctx, m.Collection, filter, update)
		}
		if err != nil {
			return ModifyResult{}, wrap(err)
		}
		result.Matched = &counts.Matched
		result.Modified = &counts.Modified
		if counts.Matched == 0 {
			result.Note = NoMatchNote
		}

	case command.ActionDeleteOne, command.ActionDeleteMany:
		filter, err := coerceFilter(m.Filter)
		if err != nil {
			return ModifyResult{}, err
		}
		var deleted int64
		if m.Action == command.ActionDeleteOne {
			deleted, err = db.DeleteOne(ctx, m.Collection, filter)
		} else {
			deleted, err = db.DeleteMany(ctx, m.Collection, filter)
		}
		if err != nil {
			return ModifyResult{}, wrap(err)
		}
		result.Deleted = &deleted
		if deleted == 0 {
			result.Note = NoMatchNote
		}

	default:
		return ModifyResult{}, &command.UnsupportedActionError{Action: string(m.Action)}
	}
	return result, nil
}

func coerceFilter(filter document.Value) (document.Value, error) {
	if filter.IsNull() {
		return document.Object(), nil
	}
	return document.CoerceIdentifiers(filter)
}

// withInsertedID puts the identifier the store assigned at the front of an
// inserted document that did not carry its own _id.
func withInsertedID(doc, id document.Value) document.Value {
	if doc.Has("_id") {
		return doc
	}
	fields := append([]document.Field{document.F("_id", id)}, doc.Fields...)
	return document.Object(fields...)
}
