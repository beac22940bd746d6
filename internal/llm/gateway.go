// Package llm sends prompts to a language model provider and returns the
// cleaned completion text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/chatdb/chatdb/internal/observability"
)

var (
	ErrOracleTimeout   = errors.New("language model timed out")
	ErrEmptyCompletion = errors.New("language model returned an empty completion")
)

// CompletionError reports a failed completion from a provider.
type CompletionError struct {
	Provider string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

type Request struct {
	System string
	User   string
	// JSON asks the provider to constrain output to a JSON object.
	JSON bool
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

type GatewayConfig struct {
	Timeout  time.Duration
	JSONMode bool
	Logger   *slog.Logger
}

// Gateway bounds each completion by a timeout, strips markdown fences and
// classifies failures. It never retries.
type Gateway struct {
	provider Provider
	timeout  time.Duration
	jsonMode bool
	logger   *slog.Logger
}

func NewGateway(provider Provider, cfg GatewayConfig) (*Gateway, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{provider: provider, timeout: timeout, jsonMode: cfg.JSONMode, logger: logger}, nil
}

func (g *Gateway) Provider() string {
	return g.provider.Name()
}

// Complete requests a JSON completion when the gateway runs in JSON mode.
func (g *Gateway) Complete(ctx context.Context, system, user string) (string, error) {
	return g.do(ctx, Request{System: system, User: user, JSON: g.jsonMode})
}

// CompleteText requests free-form text, for SQL and prose answers.
func (g *Gateway) CompleteText(ctx context.Context, system, user string) (string, error) {
	return g.do(ctx, Request{System: system, User: user})
}

func (g *Gateway) do(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	raw, err := g.provider.Complete(callCtx, req)
	elapsed := time.Since(start)
	provider := g.provider.Name()

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			observability.ObserveOracleRequest(provider, "timeout", elapsed)
			g.logger.WarnContext(ctx, "oracle_timeout",
				slog.String("provider", provider),
				slog.String("timeout", g.timeout.String()),
			)
			return "", fmt.Errorf("%w after %s", ErrOracleTimeout, g.timeout)
		}
		observability.ObserveOracleRequest(provider, "error", elapsed)
		g.logger.WarnContext(ctx, "oracle_error",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		return "", &CompletionError{Provider: provider, Err: err}
	}

	text := Clean(raw)
	if text == "" {
		observability.ObserveOracleRequest(provider, "error", elapsed)
		return "", &CompletionError{Provider: provider, Err: ErrEmptyCompletion}
	}
	observability.ObserveOracleRequest(provider, "ok", elapsed)
	g.logger.DebugContext(ctx, "oracle_completion",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("provider", provider),
		slog.String("duration", elapsed.String()),
		slog.Int("chars", len(text)),
	)
	return text, nil
}

// Fences may carry a language tag in any case, such as ```JSON or ```sql.
var fencePattern = regexp.MustCompile("```(?:[A-Za-z][A-Za-z0-9_+-]*)?[ \\t]*\\r?\\n?")

// Clean removes markdown code fences and surrounding backticks or
// whitespace from a completion.
func Clean(raw string) string {
	return strings.Trim(fencePattern.ReplaceAllString(raw, ""), "`\r\n\t ")
}
