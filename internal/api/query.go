package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chatdb/chatdb/internal/command"
	"github.com/chatdb/chatdb/internal/dispatch"
	"github.com/chatdb/chatdb/internal/document"
	"github.com/chatdb/chatdb/internal/intent"
	"github.com/chatdb/chatdb/internal/llm"
	"github.com/chatdb/chatdb/internal/nl2mongo"
	"github.com/chatdb/chatdb/internal/nl2sql"
	"github.com/chatdb/chatdb/internal/observability"
)

const maxRequestBytes = 1 << 20

func handleMongoQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Mongo == nil {
		writeError(w, http.StatusNotImplemented, "mongodb translation is not configured")
		return
	}
	var req nl2mongo.Request
	if !decodeRequest(w, r, &req) {
		return
	}
	resp, err := deps.Mongo.Handle(r.Context(), req)
	if err != nil {
		writeFailure(r.Context(), deps.Logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.Body())
}

func handleSQLQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.SQL == nil {
		writeError(w, http.StatusNotImplemented, "sql translation is not configured")
		return
	}
	var req nl2sql.Request
	if !decodeRequest(w, r, &req) {
		return
	}
	resp, err := deps.SQL.Handle(r.Context(), req)
	if err != nil {
		writeFailure(r.Context(), deps.Logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleDatabases(deps Dependencies, w http.ResponseWriter, _ *http.Request) {
	body := map[string][]string{"mongodb": {}, "sql": {}}
	if deps.Mongo != nil {
		body["mongodb"] = append(body["mongodb"], deps.Mongo.Databases()...)
	}
	if deps.SQL != nil {
		body["sql"] = append(body["sql"], deps.SQL.Databases()...)
	}
	writeJSON(w, http.StatusOK, body)
}

func handleOracleCheck(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Mongo == nil {
		writeError(w, http.StatusNotImplemented, "oracle is not configured")
		return
	}
	reply, err := deps.Mongo.CheckOracle(r.Context())
	if err != nil {
		writeFailure(r.Context(), deps.Logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeFailure(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	status := statusForError(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := []any{
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if raw, ok := rawResponse(err); ok {
		attrs = append(attrs, slog.String("raw_response", raw))
	}
	logger.Log(ctx, level, "request_failed", attrs...)
	writeError(w, status, err.Error())
}

// rawResponse returns the unparsed model output carried by a parse failure.
func rawResponse(err error) (string, bool) {
	var (
		malformedErr    *command.MalformedResponseError
		missingFieldErr *command.MissingFieldError
	)
	switch {
	case errors.As(err, &malformedErr):
		return malformedErr.Raw, true
	case errors.As(err, &missingFieldErr):
		return missingFieldErr.Raw, true
	}
	return "", false
}

// statusForError maps pipeline failures onto HTTP statuses. Oracle problems
// are upstream failures; bad input and refused commands are client errors.
func statusForError(err error) int {
	var (
		completionErr     *llm.CompletionError
		malformedErr      *command.MalformedResponseError
		missingFieldErr   *command.MissingFieldError
		unsupportedAction *command.UnsupportedActionError
		unsupportedSchema *intent.UnsupportedSchemaRequestError
		invalidMongoDB    *nl2mongo.InvalidDatabaseError
		invalidSQLDB      *nl2sql.InvalidDatabaseError
		notFoundErr       *nl2mongo.CollectionNotFoundError
		unrecognizedErr   *nl2sql.UnrecognizedIntentError
		dangerousErr      *nl2sql.DangerousStatementError
		unexpectedErr     *nl2sql.UnexpectedStatementError
		storeErr          *dispatch.StoreOperationError
		executionErr      *nl2sql.ExecutionError
	)
	switch {
	case errors.Is(err, llm.ErrOracleTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &completionErr),
		errors.As(err, &malformedErr),
		errors.As(err, &missingFieldErr),
		errors.Is(err, command.ErrInvalidOperands),
		errors.Is(err, nl2sql.ErrEmptyStatement):
		return http.StatusBadGateway
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.Is(err, nl2mongo.ErrMissingInput),
		errors.Is(err, nl2sql.ErrMissingInput),
		errors.Is(err, nl2mongo.ErrUnclassifiableIntent),
		errors.Is(err, command.ErrEmptyDeleteFilter),
		errors.Is(err, document.ErrInvalidIdentifier),
		errors.Is(err, nl2sql.ErrMultipleStatements),
		errors.As(err, &invalidMongoDB),
		errors.As(err, &invalidSQLDB),
		errors.As(err, &unsupportedAction),
		errors.As(err, &unsupportedSchema),
		errors.As(err, &unrecognizedErr),
		errors.As(err, &dangerousErr),
		errors.As(err, &unexpectedErr):
		return http.StatusBadRequest
	case errors.As(err, &storeErr), errors.As(err, &executionErr):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
