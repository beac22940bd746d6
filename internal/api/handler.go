package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chatdb/chatdb/internal/config"
	"github.com/chatdb/chatdb/internal/document"
	"github.com/chatdb/chatdb/internal/nl2mongo"
	"github.com/chatdb/chatdb/internal/nl2sql"
	"github.com/chatdb/chatdb/internal/observability"
)

type ReadinessCheck func(ctx context.Context) error

type MongoTranslator interface {
	Handle(ctx context.Context, req nl2mongo.Request) (nl2mongo.Response, error)
	CheckOracle(ctx context.Context) (document.Value, error)
	Databases() []string
}

type SQLTranslator interface {
	Handle(ctx context.Context, req nl2sql.Request) (nl2sql.Response, error)
	Databases() []string
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Mongo             MongoTranslator
	SQL               SQLTranslator
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/databases", func(w http.ResponseWriter, r *http.Request) {
		handleDatabases(deps, w, r)
	})
	mux.HandleFunc("GET /v1/oracle/check", func(w http.ResponseWriter, r *http.Request) {
		handleOracleCheck(deps, w, r)
	})
	mux.HandleFunc("POST /v1/query/mongodb", func(w http.ResponseWriter, r *http.Request) {
		handleMongoQuery(deps, w, r)
	})
	mux.HandleFunc("POST /v1/query/sql", func(w http.ResponseWriter, r *http.Request) {
		handleSQLQuery(deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.CORSMiddleware(cfg.HTTP.CORSOrigins),
		observability.MetricsMiddleware,
		observability.LoggingMiddleware(deps.Logger),
		observability.RecoverMiddleware(deps.Logger),
	}
	return chain(mux, middlewares...)
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

// writeJSON encodes before writing the header so an unencodable payload
// still yields a well-formed error response.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(map[string]string{"error": "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// writeError always writes the single-key {"error": message} body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
