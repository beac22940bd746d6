// Package nl2mongo turns free-text requests into schema answers, queries or
// modifications against a configured document database.
package nl2mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatdb/chatdb/internal/command"
	"github.com/chatdb/chatdb/internal/dispatch"
	"github.com/chatdb/chatdb/internal/document"
	"github.com/chatdb/chatdb/internal/intent"
	"github.com/chatdb/chatdb/internal/observability"
	"github.com/chatdb/chatdb/internal/prompt"
	"github.com/chatdb/chatdb/internal/schema"
	"github.com/chatdb/chatdb/internal/store"
)

type Config struct {
	SampleSize         int
	DefaultSampleLimit int
	MaxSampleLimit     int
}

type Service struct {
	databases  *store.Registry
	oracle     intent.Completer
	inferencer schema.Inferencer
	classifier intent.SchemaClassifier
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger
}

func NewService(databases *store.Registry, oracle intent.Completer, cfg Config, logger *slog.Logger) (*Service, error) {
	if databases == nil {
		return nil, errors.New("database registry is required")
	}
	if oracle == nil {
		return nil, errors.New("oracle is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		databases:  databases,
		oracle:     oracle,
		inferencer: schema.Inferencer{SampleSize: cfg.SampleSize, Logger: logger},
		classifier: intent.SchemaClassifier{
			Oracle:       oracle,
			DefaultLimit: cfg.DefaultSampleLimit,
			MaxLimit:     cfg.MaxSampleLimit,
		},
		dispatcher: dispatch.Dispatcher{Logger: logger},
		logger:     logger,
	}, nil
}

func (s *Service) Databases() []string {
	return s.databases.Names()
}

// Handle classifies the request and runs exactly one of the schema, query or
// modify paths.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	userInput := strings.TrimSpace(req.UserInput)
	dbName := strings.TrimSpace(req.DBName)
	if userInput == "" || dbName == "" {
		return Response{}, ErrMissingInput
	}
	db, ok := s.databases.Lookup(dbName)
	if !ok {
		return Response{}, &InvalidDatabaseError{Name: dbName, Available: s.databases.Names()}
	}

	kind := intent.Classify(userInput)
	observability.IncrementIntent(string(kind))
	s.logger.InfoContext(ctx, "intent_classified",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("database", dbName),
		slog.String("intent", string(kind)),
	)

	switch kind {
	case intent.KindSchema:
		resp, err := s.handleSchema(ctx, db, userInput, req.Collection)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: kind, Schema: resp}, nil
	case intent.KindQuery:
		resp, err := s.handleQuery(ctx, db, userInput, req.Collection, req.JoinCollection)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: kind, Query: resp}, nil
	case intent.KindModify:
		resp, err := s.handleModify(ctx, db, userInput, req.Collection)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: kind, Modify: resp}, nil
	default:
		return Response{}, ErrUnclassifiableIntent
	}
}

// CheckOracle asks the model for a fixed JSON object and returns it parsed.
func (s *Service) CheckOracle(ctx context.Context) (document.Value, error) {
	p := prompt.OracleCheck()
	text, err := s.oracle.Complete(ctx, p.System, p.User)
	if err != nil {
		return document.Value{}, err
	}
	parsed, err := document.ParseJSON([]byte(text))
	if err != nil || !parsed.IsObject() {
		return document.Value{}, &command.MalformedResponseError{Raw: text, Reason: "oracle check reply is not a JSON object", Err: err}
	}
	return parsed, nil
}

func (s *Service) handleSchema(ctx context.Context, db store.Database, userInput, collectionHint string) (*SchemaResponse, error) {
	names, err := db.ListCollections(ctx)
	if err != nil {
		return nil, &dispatch.StoreOperationError{Operation: "listCollections", Collection: "*", Err: err}
	}
	request, err := s.classifier.Classify(ctx, userInput, resolveCollection(names, collectionHint))
	if err != nil {
		return nil, err
	}
	resp := &SchemaResponse{Type: "schema", DB: db.Name()}

	switch request.Action {
	case intent.ListCollections:
		resp.Collections = append([]string{}, names...)

	case intent.GetFields:
		collection, err := requireCollection(db, names, request)
		if err != nil {
			return nil, err
		}
		descriptors, err := s.inferencer.Infer(ctx, db, []string{collection})
		if err != nil {
			return nil, err
		}
		descriptor, ok := descriptors[collection]
		if !ok {
			return nil, &CollectionNotFoundError{Database: db.Name(), Collection: collection}
		}
		resp.Collection = collection
		resp.Fields = descriptor.FieldNames()
		resp.FieldTypes = descriptor.Fields

	case intent.GetSamples:
		collection, err := requireCollection(db, names, request)
		if err != nil {
			return nil, err
		}
		docs, err := db.Sample(ctx, collection, int64(request.Limit))
		if err != nil {
			return nil, &dispatch.StoreOperationError{Operation: "sample", Collection: collection, Err: err}
		}
		resp.Collection = collection
		resp.Samples = make([]document.Value, 0, len(docs))
		for _, doc := range docs {
			resp.Samples = append(resp.Samples, document.StringifyIdentifiers(doc))
		}

	case intent.GetSchemaForAll:
		descriptors, err := s.inferencer.Infer(ctx, db, names)
		if err != nil {
			return nil, err
		}
		resp.FieldsByCollection = make(map[string][]string, len(descriptors))
		for name, descriptor := range descriptors {
			resp.FieldsByCollection[name] = descriptor.FieldNames()
		}
	}
	return resp, nil
}

func (s *Service) handleQuery(ctx context.Context, db store.Database, userInput, collectionHint, joinHint string) (*QueryResponse, error) {
	collections, err := s.contextCollections(ctx, db, collectionHint, joinHint)
	if err != nil {
		return nil, err
	}
	descriptors, err := s.inferencer.Infer(ctx, db, collections)
	if err != nil {
		return nil, err
	}
	p := prompt.Query(userInput, descriptors, schema.Relationships(descriptors))
	text, err := s.oracle.Complete(ctx, p.System, p.User)
	if err != nil {
		return nil, fmt.Errorf("synthesize query: %w", err)
	}
	query, err := command.ParseQuery(text)
	if err != nil {
		return nil, err
	}
	docs, err := s.dispatcher.Query(ctx, db, query)
	if err != nil {
		return nil, err
	}
	return &QueryResponse{Result: docs}, nil
}

func (s *Service) handleModify(ctx context.Context, db store.Database, userInput, collectionHint string) (*ModifyResponse, error) {
	collections, err := s.contextCollections(ctx, db, collectionHint, "")
	if err != nil {
		return nil, err
	}
	descriptors, err := s.inferencer.Infer(ctx, db, collections)
	if err != nil {
		return nil, err
	}
	p := prompt.Modify(userInput, descriptors, schema.Relationships(descriptors))
	text, err := s.oracle.Complete(ctx, p.System, p.User)
	if err != nil {
		return nil, fmt.Errorf("synthesize modification: %w", err)
	}
	modify, err := command.ParseModify(text)
	if err != nil {
		return nil, err
	}
	result, err := s.dispatcher.Modify(ctx, db, modify)
	if err != nil {
		return nil, err
	}
	return newModifyResponse(modify.Collection, result), nil
}

// contextCollections picks the collections whose schema grounds the prompt:
// the hinted collection plus the join collection, or every collection.
func (s *Service) contextCollections(ctx context.Context, db store.Database, collectionHint, joinHint string) ([]string, error) {
	names, err := db.ListCollections(ctx)
	if err != nil {
		return nil, &dispatch.StoreOperationError{Operation: "listCollections", Collection: "*", Err: err}
	}
	hint := resolveCollection(names, collectionHint)
	if hint == "" {
		return names, nil
	}
	collections := []string{hint}
	if join := resolveCollection(names, joinHint); join != "" && join != hint {
		collections = append(collections, join)
	}
	return collections, nil
}

func requireCollection(db store.Database, names []string, request intent.SchemaRequest) (string, error) {
	if strings.TrimSpace(request.Collection) == "" {
		return "", &intent.UnsupportedSchemaRequestError{Intent: string(request.Action)}
	}
	collection := resolveCollection(names, request.Collection)
	for _, name := range names {
		if name == collection {
			return collection, nil
		}
	}
	return "", &CollectionNotFoundError{Database: db.Name(), Collection: request.Collection}
}

// resolveCollection maps a caller-supplied name onto the actual collection
// name, ignoring case. Unknown names are returned trimmed but unchanged.
func resolveCollection(names []string, candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ""
	}
	for _, name := range names {
		if name == candidate {
			return name
		}
	}
	for _, name := range names {
		if strings.EqualFold(name, candidate) {
			return name
		}
	}
	return candidate
}
