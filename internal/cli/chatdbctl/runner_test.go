package chatdbctl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRunAskCommand(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[{"name":"Ada"}]}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-db", "shop",
		"-collection", "users",
		"ask", "who", "is", "older", "than", "30?",
	}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/query/mongodb" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotBody["user_input"] != "who is older than 30?" || gotBody["db_name"] != "shop" || gotBody["collection"] != "users" {
		t.Fatalf("body = %v", gotBody)
	}
	if _, ok := gotBody["join_collection"]; ok {
		t.Fatalf("join_collection should be omitted: %v", gotBody)
	}
	if !strings.Contains(stdout.String(), `"name": "Ada"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunSQLCommandUsesDefaultDatabase(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"intent":"query"}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "sql", "count employees"}, Options{Database: "hr"})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/query/sql" || gotBody["db_name"] != "hr" || gotBody["user_input"] != "count employees" {
		t.Fatalf("request = %s %v", gotPath, gotBody)
	}
}

func TestRunGetCommands(t *testing.T) {
	for command, wantPath := range map[string]string{
		"health":       "/v1/health",
		"ready":        "/v1/ready",
		"databases":    "/v1/databases",
		"oracle-check": "/v1/oracle/check",
	} {
		var gotMethod, gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}))

		code := Run(context.Background(), []string{"-base-url", srv.URL, command}, Options{})
		srv.Close()
		if code != 0 {
			t.Fatalf("%s: exit code = %d", command, code)
		}
		if gotMethod != http.MethodGet || gotPath != wantPath {
			t.Fatalf("%s: request = %s %s", command, gotMethod, gotPath)
		}
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"collection \"ghosts\" not found or empty in shop"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "ask", "show ghosts"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "http 404") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunRejectsAskWithoutQuestion(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"ask"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"unknown"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected usage output")
	}
}
