package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatdb/chatdb/internal/command"
	"github.com/chatdb/chatdb/internal/prompt"
)

type SchemaAction string

const (
	ListCollections SchemaAction = "list_collections"
	GetFields       SchemaAction = "get_fields"
	GetSamples      SchemaAction = "get_samples"
	GetSchemaForAll SchemaAction = "get_schema_for_all"
)

func ParseSchemaAction(raw string) (SchemaAction, error) {
	switch action := SchemaAction(strings.ToLower(strings.TrimSpace(raw))); action {
	case ListCollections, GetFields, GetSamples, GetSchemaForAll:
		return action, nil
	default:
		return "", &UnsupportedSchemaRequestError{Intent: raw}
	}
}

type UnsupportedSchemaRequestError struct {
	Intent string
}

func (e *UnsupportedSchemaRequestError) Error() string {
	return fmt.Sprintf("unrecognized or unsupported schema request (intent: %q)", e.Intent)
}

type SchemaRequest struct {
	Action     SchemaAction
	Collection string
	// Limit is only set for GetSamples.
	Limit int
}

// Completer is the slice of the language model gateway the classifier needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// SchemaClassifier asks the model which schema question was asked.
type SchemaClassifier struct {
	Oracle       Completer
	DefaultLimit int
	MaxLimit     int
}

// Classify sub-classifies a schema request. A non-empty collectionHint
// replaces whatever collection the model extracted.
func (c SchemaClassifier) Classify(ctx context.Context, userInput, collectionHint string) (SchemaRequest, error) {
	p := prompt.SchemaIntent(userInput, c.defaultLimit())
	text, err := c.Oracle.Complete(ctx, p.System, p.User)
	if err != nil {
		return SchemaRequest{}, fmt.Errorf("classify schema intent: %w", err)
	}
	parsed, err := command.ParseSchemaIntent(text)
	if err != nil {
		return SchemaRequest{}, err
	}
	action, err := ParseSchemaAction(parsed.Intent)
	if err != nil {
		return SchemaRequest{}, err
	}

	request := SchemaRequest{Action: action, Collection: parsed.Collection}
	if hint := strings.TrimSpace(collectionHint); hint != "" {
		request.Collection = hint
	}
	if action == GetSamples {
		request.Limit = c.clampLimit(parsed.Limit)
	}
	return request, nil
}

func (c SchemaClassifier) defaultLimit() int {
	if c.DefaultLimit <= 0 {
		return prompt.DefaultSampleLimit
	}
	return c.DefaultLimit
}

func (c SchemaClassifier) clampLimit(limit int) int {
	if limit <= 0 {
		limit = c.defaultLimit()
	}
	if c.MaxLimit > 0 && limit > c.MaxLimit {
		limit = c.MaxLimit
	}
	return limit
}
