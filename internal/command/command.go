// Package command validates language model output and decodes it into
// structured store commands.
package command

import (
	"fmt"
	"math"
	"strings"

	"github.com/chatdb/chatdb/internal/document"
)

type Action string

const (
	ActionInsertOne  Action = "insertOne"
	ActionInsertMany Action = "insertMany"
	ActionUpdateOne  Action = "updateOne"
	ActionUpdateMany Action = "updateMany"
	ActionDeleteOne  Action = "deleteOne"
	ActionDeleteMany Action = "deleteMany"
)

func ParseAction(raw string) (Action, error) {
	switch action := Action(strings.TrimSpace(raw)); action {
	case ActionInsertOne, ActionInsertMany, ActionUpdateOne, ActionUpdateMany, ActionDeleteOne, ActionDeleteMany:
		return action, nil
	default:
		return "", &UnsupportedActionError{Action: raw}
	}
}

func (a Action) IsDelete() bool {
	return a == ActionDeleteOne || a == ActionDeleteMany
}

type QueryKind uint8

const (
	QueryFind QueryKind = iota + 1
	QueryAggregate
)

func (k QueryKind) String() string {
	switch k {
	case QueryFind:
		return "find"
	case QueryAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

type SortKey struct {
	Field     string
	Direction int
}

type Find struct {
	Filter     document.Value
	Projection document.Value
	Sort       []SortKey
	Limit      int64
	Skip       int64
}

type Query struct {
	Collection string
	Kind       QueryKind
	Find       Find
	Pipeline   []document.Value
}

type Modify struct {
	Collection string
	Action     Action
	// Data is an object for insertOne and an array of objects for insertMany.
	Data   document.Value
	Filter document.Value
	Update document.Value
}

// Validate checks the operands each action needs. Deletes must carry a
// non-empty filter.
func (m Modify) Validate() error {
	switch m.Action {
	case ActionInsertOne:
		if !m.Data.IsObject() {
			return fmt.Errorf("%w: insertOne data must be an object", ErrInvalidOperands)
		}
	case ActionInsertMany:
		if !m.Data.IsArray() || len(m.Data.Items) == 0 {
			return fmt.Errorf("%w: insertMany data must be a non-empty array", ErrInvalidOperands)
		}
		for _, item := range m.Data.Items {
			if !item.IsObject() {
				return fmt.Errorf("%w: insertMany data items must be objects", ErrInvalidOperands)
			}
		}
	case ActionUpdateOne, ActionUpdateMany:
		if !m.Update.IsObject() || m.Update.IsEmpty() {
			return fmt.Errorf("%w: %s requires a non-empty update", ErrInvalidOperands, m.Action)
		}
		if !m.Filter.IsNull() && !m.Filter.IsObject() {
			return fmt.Errorf("%w: %s filter must be an object", ErrInvalidOperands, m.Action)
		}
	case ActionDeleteOne, ActionDeleteMany:
		if !m.Filter.IsObject() || m.Filter.IsEmpty() {
			return ErrEmptyDeleteFilter
		}
	default:
		return &UnsupportedActionError{Action: string(m.Action)}
	}
	return nil
}

type SchemaIntent struct {
	Intent     string
	Collection string
	// Limit is zero when the model named no count.
	Limit int
}

// ParseQuery validates a query response: a JSON object with "collection"
// and a "command" holding either "find" or "aggregate".
func ParseQuery(text string) (Query, error) {
	root, err := parseObject(text)
	if err != nil {
		return Query{}, err
	}
	collection, err := requireCollection(root, text)
	if err != nil {
		return Query{}, err
	}
	cmd, ok := root.Get("command")
	if !ok {
		return Query{}, &MissingFieldError{Raw: text, Field: "command"}
	}
	if !cmd.IsObject() {
		return Query{}, &MalformedResponseError{Raw: text, Reason: "command must be an object"}
	}

	if findBlock, ok := cmd.Get("find"); ok {
		find, err := parseFind(findBlock, cmd)
		if err != nil {
			return Query{}, &MalformedResponseError{Raw: text, Err: err}
		}
		return Query{Collection: collection, Kind: QueryFind, Find: find}, nil
	}
	if pipeline, ok := cmd.Get("aggregate"); ok {
		if !pipeline.IsArray() {
			return Query{}, &MalformedResponseError{Raw: text, Reason: "aggregate must be an array of stages"}
		}
		for _, stage := range pipeline.Items {
			if !stage.IsObject() {
				return Query{}, &MalformedResponseError{Raw: text, Reason: "aggregate stages must be objects"}
			}
		}
		return Query{Collection: collection, Kind: QueryAggregate, Pipeline: pipeline.Items}, nil
	}

	name := ""
	if keys := cmd.Keys(); len(keys) > 0 {
		name = keys[0]
	}
	return Query{}, &UnsupportedActionError{Action: name}
}

// parseFind reads find options from the find block, falling back to
// siblings of "find" inside the command for sort/limit/skip/projection.
func parseFind(block, cmd document.Value) (Find, error) {
	if !block.IsNull() && !block.IsObject() {
		return Find{}, fmt.Errorf("find must be an object")
	}
	option := func(key string) (document.Value, bool) {
		if v, ok := block.Get(key); ok && !v.IsNull() {
			return v, true
		}
		if v, ok := cmd.Get(key); ok && !v.IsNull() {
			return v, true
		}
		return document.Value{}, false
	}

	find := Find{Filter: document.Object(), Projection: document.Null()}
	if filter, ok := option("filter"); ok {
		if !filter.IsObject() {
			return Find{}, fmt.Errorf("filter must be an object")
		}
		find.Filter = filter
	}
	if projection, ok := option("projection"); ok {
		if !projection.IsObject() {
			return Find{}, fmt.Errorf("projection must be an object")
		}
		find.Projection = projection
	}
	if sortSpec, ok := option("sort"); ok {
		keys, err := parseSort(sortSpec)
		if err != nil {
			return Find{}, err
		}
		find.Sort = keys
	}
	if limit, ok := option("limit"); ok {
		n, err := nonNegativeInt(limit, "limit")
		if err != nil {
			return Find{}, err
		}
		find.Limit = n
	}
	if skip, ok := option("skip"); ok {
		n, err := nonNegativeInt(skip, "skip")
		if err != nil {
			return Find{}, err
		}
		find.Skip = n
	}
	return find, nil
}

// parseSort accepts {"a": -1, "b": 1}, [["a", -1], ["b", 1]] or
// [{"a": -1}, {"b": 1}], preserving order in every form.
func parseSort(spec document.Value) ([]SortKey, error) {
	keys := make([]SortKey, 0)
	switch spec.Kind {
	case document.KindObject:
		for _, field := range spec.Fields {
			dir, err := direction(field.Value)
			if err != nil {
				return nil, fmt.Errorf("sort %s: %w", field.Key, err)
			}
			keys = append(keys, SortKey{Field: field.Key, Direction: dir})
		}
	case document.KindArray:
		for _, item := range spec.Items {
			switch {
			case item.IsArray() && len(item.Items) == 2 && item.Items[0].Kind == document.KindString:
				dir, err := direction(item.Items[1])
				if err != nil {
					return nil, fmt.Errorf("sort %s: %w", item.Items[0].Str(), err)
				}
				keys = append(keys, SortKey{Field: item.Items[0].Str(), Direction: dir})
			case item.IsObject():
				for _, field := range item.Fields {
					dir, err := direction(field.Value)
					if err != nil {
						return nil, fmt.Errorf("sort %s: %w", field.Key, err)
					}
					keys = append(keys, SortKey{Field: field.Key, Direction: dir})
				}
			default:
				return nil, fmt.Errorf("sort entries must be [field, direction] pairs or objects")
			}
		}
	default:
		return nil, fmt.Errorf("sort must be an object or an array")
	}
	return keys, nil
}

func direction(v document.Value) (int, error) {
	if n, ok := v.Number(); ok {
		switch {
		case n > 0:
			return 1, nil
		case n < 0:
			return -1, nil
		}
		return 0, fmt.Errorf("direction must be 1 or -1")
	}
	if v.Kind == document.KindString {
		switch strings.ToLower(strings.TrimSpace(v.Str())) {
		case "asc", "ascending":
			return 1, nil
		case "desc", "descending":
			return -1, nil
		}
	}
	return 0, fmt.Errorf("direction must be 1, -1, \"asc\" or \"desc\"")
}

func nonNegativeInt(v document.Value, name string) (int64, error) {
	if v.Kind == document.KindInt {
		if v.Int64() < 0 {
			return 0, fmt.Errorf("%s must be a non-negative integer", name)
		}
		return v.Int64(), nil
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit in int64.
	n, ok := v.Number()
	if !ok || n < 0 || n != math.Trunc(n) || n >= math.MaxInt64 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return int64(n), nil
}

// ParseModify validates a modification response: a JSON object with
// "collection" and a known "action". Operand checks run in Modify.Validate.
func ParseModify(text string) (Modify, error) {
	root, err := parseObject(text)
	if err != nil {
		return Modify{}, err
	}
	collection, err := requireCollection(root, text)
	if err != nil {
		return Modify{}, err
	}
	rawAction, ok := root.Get("action")
	if !ok {
		return Modify{}, &MissingFieldError{Raw: text, Field: "action"}
	}
	if rawAction.Kind != document.KindString {
		return Modify{}, &MalformedResponseError{Raw: text, Reason: "action must be a string"}
	}
	action, err := ParseAction(rawAction.Str())
	if err != nil {
		return Modify{}, err
	}

	modify := Modify{Collection: collection, Action: action, Data: document.Null(), Filter: document.Null(), Update: document.Null()}
	if data, ok := root.Get("data"); ok {
		modify.Data = data
	}
	if filter, ok := root.Get("filter"); ok {
		modify.Filter = filter
	}
	if update, ok := root.Get("update"); ok {
		modify.Update = update
	}
	return modify, nil
}

// ParseSchemaIntent validates a schema sub-classification response.
func ParseSchemaIntent(text string) (SchemaIntent, error) {
	root, err := parseObject(text)
	if err != nil {
		return SchemaIntent{}, err
	}
	intent, ok := root.Get("intent")
	if !ok {
		return SchemaIntent{}, &MissingFieldError{Raw: text, Field: "intent"}
	}
	if intent.Kind != document.KindString {
		return SchemaIntent{}, &MalformedResponseError{Raw: text, Reason: "intent must be a string"}
	}

	result := SchemaIntent{Intent: strings.TrimSpace(intent.Str())}
	if collection, ok := root.Get("collection"); ok && collection.Kind == document.KindString {
		result.Collection = strings.TrimSpace(collection.Str())
	}
	if limit, ok := root.Get("limit"); ok {
		if n, ok := limit.Number(); ok && n > 0 && n <= math.MaxInt32 {
			result.Limit = int(n)
		}
	}
	return result, nil
}

func parseObject(text string) (document.Value, error) {
	root, err := document.ParseJSON([]byte(text))
	if err != nil {
		return document.Value{}, &MalformedResponseError{Raw: text, Err: err}
	}
	if !root.IsObject() {
		return document.Value{}, &MalformedResponseError{Raw: text, Reason: "top-level value must be an object"}
	}
	return root, nil
}

func requireCollection(root document.Value, text string) (string, error) {
	collection, ok := root.Get("collection")
	if !ok || collection.IsNull() {
		return "", &MissingFieldError{Raw: text, Field: "collection"}
	}
	if collection.Kind != document.KindString {
		return "", &MalformedResponseError{Raw: text, Reason: "collection must be a string"}
	}
	name := strings.TrimSpace(collection.Str())
	if name == "" {
		return "", &MissingFieldError{Raw: text, Field: "collection"}
	}
	return name, nil
}
