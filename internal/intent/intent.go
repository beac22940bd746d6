// Package intent classifies free-text requests into schema, query or
// modification intents.
package intent

import (
	"strings"
)

type Kind string

const (
	KindModify  Kind = "modify"
	KindSchema  Kind = "schema"
	KindQuery   Kind = "query"
	KindUnknown Kind = "unknown"
)

var (
	modifyKeywords = []string{
		"update", "change", "set",
		"insert", "add",
		"delete", "remove",
		"edit", "replace",
	}
	schemaKeywords = []string{
		"collection", "collections",
		"field", "fields",
		"column", "columns",
		"schema", "structure",
		"sample", "samples",
		"example", "examples",
		"table", "tables",
		"db", "database", "databases",
		"inside",
		"attribute", "attributes",
	}
	// A schema keyword next to one of these reads as a data query.
	queryDisambiguators = []string{"find", "where", "matches", "search", "filter"}
	queryKeywords       = []string{
		"find", "show", "list", "get", "display", "retrieve",
		"aggregate", "match", "group", "sort", "limit", "skip", "project",
		"join", "lookup",
		"average", "mean", "sum", "total", "count",
		"maximum", "minimum", "max", "min", "largest", "top", "smallest", "low", "most",
	}
	queryPrefixes = []string{
		"what is", "what are", "what was",
		"how many", "how much", "give me", "can you show",
	}
)

// Classify applies the keyword rules in priority order: modification,
// schema (unless a query disambiguator is present), query keyword, question
// prefix. Matching is case-insensitive substring matching, so "settings"
// counts as "set".
func Classify(text string) Kind {
	normalized := strings.ToLower(strings.TrimSpace(text))
	switch {
	case containsAny(normalized, modifyKeywords):
		return KindModify
	case containsAny(normalized, schemaKeywords) && !containsAny(normalized, queryDisambiguators):
		return KindSchema
	case containsAny(normalized, queryKeywords):
		return KindQuery
	case hasAnyPrefix(normalized, queryPrefixes):
		return KindQuery
	default:
		return KindUnknown
	}
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(text string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}
