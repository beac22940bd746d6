package nl2sql

import (
	"errors"
	"testing"
)

func TestClassifyStatement(t *testing.T) {
	tests := map[string]StatementKind{
		"SELECT 1":                                                                StatementSelect,
		"  with t as (select 1) select *":                                         StatementSelect,
		"(SELECT 1) UNION (SELECT 2)":                                             StatementSelect,
		"insert into users values (1)":                                            StatementInsert,
		"UPDATE users SET a = 1 WHERE id=1":                                       StatementUpdate,
		"delete from users where id = 2":                                          StatementDelete,
		"VACUUM":                                                                  StatementOther,
		"WITH gone AS (DELETE FROM users RETURNING id) SELECT id FROM gone":       StatementOther,
		"with t as (update users set a = 1 returning id) select * from t":         StatementOther,
		"WITH x AS (INSERT INTO audit VALUES (1) RETURNING *) SELECT * FROM x":    StatementOther,
		"WITH recent AS (SELECT id, updated_at FROM users) SELECT id FROM recent": StatementSelect,
		"":                                                                        StatementOther,
	}
	for statement, want := range tests {
		if got := Classify(statement); got != want {
			t.Fatalf("Classify(%q) = %q, want %q", statement, got, want)
		}
	}
}

func TestEnforceLimit(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT * FROM users;", "SELECT * FROM users LIMIT 100"},
		{"SELECT * FROM users LIMIT 5", "SELECT * FROM users LIMIT 5"},
		{"select * from users limit 5", "select * from users limit 5"},
		{"SELECT unlimited FROM plans", "SELECT unlimited FROM plans LIMIT 100"},
		{"UPDATE users SET a = 1", "UPDATE users SET a = 1"},
	}
	for _, tt := range tests {
		if got := EnforceLimit(tt.in, 100); got != tt.want {
			t.Fatalf("EnforceLimit(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCheckSafeMatchesWholeWords(t *testing.T) {
	var dangerous *DangerousStatementError
	if err := CheckSafe("SELECT 1; DROP TABLE users"); !errors.As(err, &dangerous) || dangerous.Keyword != "DROP" {
		t.Fatalf("CheckSafe() error = %v, want DROP", err)
	}
	if err := CheckSafe("select * from users where created_at > now()"); err != nil {
		t.Fatalf("CheckSafe() error = %v, created_at should be allowed", err)
	}
	if err := CheckSafe("SELECT dropped, altered FROM audit"); err != nil {
		t.Fatalf("CheckSafe() error = %v", err)
	}
	if err := CheckSafe("grant all on users to bob"); !errors.As(err, &dangerous) {
		t.Fatalf("CheckSafe() error = %v, want GRANT", err)
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("  SELECT 1;;  ")
	if err != nil || got != "SELECT 1" {
		t.Fatalf("Normalize() = %q, %v", got, err)
	}
	if _, err := Normalize(" ; "); !errors.Is(err, ErrEmptyStatement) {
		t.Fatalf("Normalize() error = %v, want ErrEmptyStatement", err)
	}
	if _, err := Normalize("DELETE FROM a WHERE id = 1; DELETE FROM b WHERE id = 1"); !errors.Is(err, ErrMultipleStatements) {
		t.Fatalf("Normalize() error = %v, want ErrMultipleStatements", err)
	}
}

func TestParseIntent(t *testing.T) {
	for raw, want := range map[string]Intent{
		"schema":           IntentSchema,
		" \"Query\" ":      IntentQuery,
		"'modification'.": IntentModification,
	} {
		got, err := ParseIntent(raw)
		if err != nil || got != want {
			t.Fatalf("ParseIntent(%q) = %q, %v", raw, got, err)
		}
	}
	var unrecognized *UnrecognizedIntentError
	if _, err := ParseIntent("chit-chat"); !errors.As(err, &unrecognized) {
		t.Fatalf("ParseIntent() error = %v, want *UnrecognizedIntentError", err)
	}
}

func TestNormalizeValuesConvertsBytes(t *testing.T) {
	got := normalizeValues([]any{[]byte("abc"), int64(3), nil})
	if got[0] != "abc" || got[1] != int64(3) || got[2] != nil {
		t.Fatalf("normalizeValues() = %#v", got)
	}
}
