package nl2sql

import (
	"fmt"
	"regexp"
	"strings"
)

type StatementKind string

const (
	StatementSelect StatementKind = "select"
	StatementInsert StatementKind = "insert"
	StatementUpdate StatementKind = "update"
	StatementDelete StatementKind = "delete"
	StatementOther  StatementKind = "other"
)

var (
	dangerousPattern = regexp.MustCompile(`(?i)\b(drop|truncate|alter|create|grant|revoke)\b`)
	limitPattern     = regexp.MustCompile(`(?i)\blimit\b`)
	writePattern     = regexp.MustCompile(`(?i)\b(insert|update|delete|merge)\b`)
)

// Classify reports the statement kind from its leading keyword. A WITH
// statement is a read only when none of its parts writes; data-modifying
// CTEs are StatementOther and match no intent.
func Classify(statement string) StatementKind {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return StatementOther
	}
	switch strings.ToUpper(strings.TrimLeft(fields[0], "(")) {
	case "SELECT":
		return StatementSelect
	case "WITH":
		if writePattern.MatchString(statement) {
			return StatementOther
		}
		return StatementSelect
	case "INSERT":
		return StatementInsert
	case "UPDATE":
		return StatementUpdate
	case "DELETE":
		return StatementDelete
	default:
		return StatementOther
	}
}

// Normalize trims whitespace and trailing semicolons and rejects empty or
// stacked statements.
func Normalize(statement string) (string, error) {
	trimmed := stripTrailingSemicolons(statement)
	if trimmed == "" {
		return "", ErrEmptyStatement
	}
	if strings.Contains(trimmed, ";") {
		return "", ErrMultipleStatements
	}
	return trimmed, nil
}

// EnforceLimit appends LIMIT n to reads that carry no LIMIT clause.
func EnforceLimit(statement string, limit int) string {
	if limit <= 0 || Classify(statement) != StatementSelect || limitPattern.MatchString(statement) {
		return statement
	}
	return fmt.Sprintf("%s LIMIT %d", stripTrailingSemicolons(statement), limit)
}

// CheckSafe rejects schema-changing and permission statements anywhere in
// the text, matched as whole words.
func CheckSafe(statement string) error {
	if match := dangerousPattern.FindString(statement); match != "" {
		return &DangerousStatementError{SQL: statement, Keyword: strings.ToUpper(match)}
	}
	return nil
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
