package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chatdb/chatdb/internal/cli/chatdbctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("CHATDB_CLI_TIMEOUT")), 60*time.Second)
	options := chatdbctl.Options{
		BaseURL:  envOr("CHATDB_API_URL", "http://localhost:8080"),
		Database: strings.TrimSpace(os.Getenv("CHATDB_CLI_DB")),
		Timeout:  timeout,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}

	code := chatdbctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid CHATDB_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
