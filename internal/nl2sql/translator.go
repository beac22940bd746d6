// Package nl2sql answers free-text requests against relational databases:
// schema questions, SELECT queries and single-statement modifications.
package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Intent string

const (
	IntentSchema       Intent = "schema"
	IntentQuery        Intent = "query"
	IntentModification Intent = "modification"
)

// ParseIntent reads the oracle's one-word classification.
func ParseIntent(raw string) (Intent, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.NewReplacer(`"`, "", "'", "", ".", "").Replace(cleaned)
	switch intent := Intent(strings.TrimSpace(cleaned)); intent {
	case IntentSchema, IntentQuery, IntentModification:
		return intent, nil
	default:
		return "", &UnrecognizedIntentError{Intent: raw}
	}
}

// Oracle produces free-text completions.
type Oracle interface {
	CompleteText(ctx context.Context, system, user string) (string, error)
}

type Request struct {
	UserInput string `json:"user_input"`
	DBName    string `json:"db_name"`
}

type Response struct {
	Intent       Intent   `json:"intent"`
	Answer       string   `json:"answer,omitempty"`
	SQL          string   `json:"sql,omitempty"`
	Columns      []string `json:"columns,omitzero"`
	Results      [][]any  `json:"results,omitzero"`
	Explanation  string   `json:"explanation,omitempty"`
	Status       string   `json:"status,omitempty"`
	RowsAffected *int64   `json:"rows_affected,omitempty"`
}

var (
	ErrMissingInput       = errors.New("missing 'user_input' in request")
	ErrEmptyStatement     = errors.New("model returned empty SQL")
	ErrMultipleStatements = errors.New("model returned more than one SQL statement")
)

type InvalidDatabaseError struct {
	Name      string
	Available []string
}

func (e *InvalidDatabaseError) Error() string {
	return fmt.Sprintf("invalid db_name %q, available: [%s]", e.Name, strings.Join(e.Available, ", "))
}

type UnrecognizedIntentError struct {
	Intent string
}

func (e *UnrecognizedIntentError) Error() string {
	return fmt.Sprintf("unrecognized request type: %q", e.Intent)
}

type DangerousStatementError struct {
	SQL     string
	Keyword string
}

func (e *DangerousStatementError) Error() string {
	return fmt.Sprintf("dangerous sql command detected: %s", e.Keyword)
}

// UnexpectedStatementError reports SQL whose kind does not fit the
// classified intent, such as an UPDATE for a read request.
type UnexpectedStatementError struct {
	Intent Intent
	Kind   StatementKind
	SQL    string
}

func (e *UnexpectedStatementError) Error() string {
	return fmt.Sprintf("%s request produced a %s statement", e.Intent, e.Kind)
}

type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute sql: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
