// Package schema infers approximate field-level schemas from sampled
// documents and derives cross-collection relationship hints.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/chatdb/chatdb/internal/document"
	"github.com/chatdb/chatdb/internal/observability"
	"github.com/chatdb/chatdb/internal/store"
)

type TypeTag string

const (
	TypeString      TypeTag = "string"
	TypeInt         TypeTag = "int"
	TypeDouble      TypeTag = "double"
	TypeBoolean     TypeTag = "boolean"
	TypeArray       TypeTag = "array"
	TypeObject      TypeTag = "object"
	TypeObjectID    TypeTag = "ObjectId"
	TypeArrayObject TypeTag = "array<object>"
	TypeNull        TypeTag = "null"
	TypeUnknown     TypeTag = "unknown"
)

const MaxSampleSize = 20

// Descriptor is a sample-based approximation of one collection's shape.
type Descriptor struct {
	Collection string
	Fields     map[string]TypeTag
	Indexes    []string
}

// FieldNames returns dot-notation paths in sorted order.
func (d *Descriptor) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for name := range d.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Relationship struct {
	From string
	To   string
}

type Inferencer struct {
	SampleSize int
	Logger     *slog.Logger
}

func (i Inferencer) sampleSize() int64 {
	switch {
	case i.SampleSize <= 0 || i.SampleSize > MaxSampleSize:
		return MaxSampleSize
	default:
		return int64(i.SampleSize)
	}
}

// Infer samples each named collection and builds its descriptor. Collections
// with no sampled documents are absent from the result.
func (i Inferencer) Infer(ctx context.Context, db store.Database, collections []string) (map[string]*Descriptor, error) {
	descriptors := make(map[string]*Descriptor, len(collections))
	for _, name := range collections {
		docs, err := db.Sample(ctx, name, i.sampleSize())
		if err != nil {
			return nil, fmt.Errorf("sample %s.%s: %w", db.Name(), name, err)
		}
		observability.ObserveSampledDocuments(len(docs))
		if len(docs) == 0 {
			if i.Logger != nil {
				i.Logger.DebugContext(ctx, "schema_collection_empty",
					slog.String("database", db.Name()),
					slog.String("collection", name),
				)
			}
			continue
		}

		indexes, err := db.IndexNames(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("indexes of %s.%s: %w", db.Name(), name, err)
		}

		fields := map[string]TypeTag{}
		for _, doc := range docs {
			Flatten(doc, fields)
		}
		descriptors[name] = &Descriptor{Collection: name, Fields: fields, Indexes: indexes}
	}
	return descriptors, nil
}

// Flatten records the type of every path in doc into fields. The first
// non-null tag seen for a path is kept across documents.
func Flatten(doc document.Value, fields map[string]TypeTag) {
	flattenObject(doc, "", fields)
}

func flattenObject(doc document.Value, prefix string, fields map[string]TypeTag) {
	for _, field := range doc.Fields {
		path := field.Key
		if prefix != "" {
			path = prefix + "." + field.Key
		}
		record(fields, path, TagOf(field.Value))

		switch field.Value.Kind {
		case document.KindObject:
			flattenObject(field.Value, path, fields)
		case document.KindArray:
			if len(field.Value.Items) > 0 && field.Value.Items[0].Kind == document.KindObject {
				flattenObject(field.Value.Items[0], path, fields)
			}
		}
	}
}

func record(fields map[string]TypeTag, path string, tag TypeTag) {
	existing, ok := fields[path]
	if !ok || existing == TypeNull {
		fields[path] = tag
	}
}

// TagOf maps one value to its type tag without descending.
func TagOf(v document.Value) TypeTag {
	switch v.Kind {
	case document.KindString:
		return TypeString
	case document.KindBool:
		return TypeBoolean
	case document.KindInt:
		return TypeInt
	case document.KindDouble:
		return TypeDouble
	case document.KindObjectID:
		return TypeObjectID
	case document.KindObject:
		return TypeObject
	case document.KindArray:
		if len(v.Items) > 0 && v.Items[0].Kind == document.KindObject {
			return TypeArrayObject
		}
		return TypeArray
	case document.KindNull:
		return TypeNull
	default:
		return TypeUnknown
	}
}

// Relationships derives advisory reference hints: an ObjectId field whose
// name contains "id" and whose prefix before the first underscore names
// another collection, exactly or as a prefix ("user_id" -> "users").
func Relationships(descriptors map[string]*Descriptor) []Relationship {
	collections := make([]string, 0, len(descriptors))
	for name := range descriptors {
		collections = append(collections, name)
	}
	sort.Strings(collections)

	relationships := make([]Relationship, 0)
	for _, source := range collections {
		descriptor := descriptors[source]
		for _, path := range descriptor.FieldNames() {
			if descriptor.Fields[path] != TypeObjectID {
				continue
			}
			target, ok := referencedCollection(path, collections)
			if !ok {
				continue
			}
			relationships = append(relationships, Relationship{
				From: source + "." + path,
				To:   target + "._id",
			})
		}
	}
	return relationships
}

func referencedCollection(path string, collections []string) (string, bool) {
	name := strings.ToLower(path[strings.LastIndex(path, ".")+1:])
	if name == "_id" || !strings.Contains(name, "id") {
		return "", false
	}
	prefix, _, _ := strings.Cut(name, "_")
	if prefix == "" {
		return "", false
	}
	for _, collection := range collections {
		if strings.ToLower(collection) == prefix {
			return collection, true
		}
	}
	for _, collection := range collections {
		if strings.HasPrefix(strings.ToLower(collection), prefix) {
			return collection, true
		}
	}
	return "", false
}

// Names returns descriptor collection names in sorted order.
func Names(descriptors map[string]*Descriptor) []string {
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
