package nl2sql

import (
	"fmt"
	"strings"

	"github.com/chatdb/chatdb/internal/prompt"
)

func dialectName(driver string) string {
	switch driver {
	case "mysql":
		return "MySQL"
	case "duckdb":
		return "DuckDB"
	default:
		return "PostgreSQL"
	}
}

func intentPrompt(userInput string) prompt.Prompt {
	return prompt.Prompt{
		System: "You are a SQL assistant. Given a user's natural language request, classify it into one of the " +
			"following types: 'schema', 'query', or 'modification'.\nOnly return one of these words, and nothing else.",
		User: "User request: " + strings.TrimSpace(userInput),
	}
}

func schemaAnswerPrompt(userInput, schemaText, driver string) prompt.Prompt {
	return prompt.Prompt{
		System: "You are a database assistant. Answer questions about the database schema in plain English. Do not generate SQL.",
		User: fmt.Sprintf(
			"The following is the schema of a %s database:\n\n%s\n\n"+
				"The user is asking about the schema: what tables exist, what columns a table has, or what its data looks like.\n\n"+
				"User question: %s",
			dialectName(driver), schemaText, strings.TrimSpace(userInput),
		),
	}
}

func selectPrompt(userInput, schemaText, driver string, rowLimit int) prompt.Prompt {
	return prompt.Prompt{
		System: fmt.Sprintf("You translate natural language into a single %s SELECT statement. "+
			"Return ONLY SQL. No markdown, no explanation.", dialectName(driver)),
		User: fmt.Sprintf(
			"Database schema:\n%s\n\n"+
				"Rules:\n"+
				"- Use only table and column names shown in the schema.\n"+
				"- Output exactly one SELECT statement.\n"+
				"- Add LIMIT %d unless the user asks otherwise.\n\n"+
				"Query: %s",
			schemaText, rowLimit, strings.TrimSpace(userInput),
		),
	}
}

func modifyPrompt(userInput, schemaText, driver string) prompt.Prompt {
	return prompt.Prompt{
		System: fmt.Sprintf("You translate natural language into a single %s INSERT, UPDATE or DELETE statement. "+
			"Return ONLY SQL. No markdown, no explanation.", dialectName(driver)),
		User: fmt.Sprintf(
			"Database schema:\n%s\n\n"+
				"Rules:\n"+
				"- Use only table and column names shown in the schema.\n"+
				"- Output exactly one INSERT, UPDATE or DELETE statement.\n"+
				"- UPDATE and DELETE must carry a WHERE clause.\n\n"+
				"Query: %s",
			schemaText, strings.TrimSpace(userInput),
		),
	}
}

func explainPrompt(userInput, statement string, rows [][]any) prompt.Prompt {
	lines := make([]string, 0, 3)
	for i, row := range rows {
		if i == 3 {
			break
		}
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, fmt.Sprint(cell))
		}
		lines = append(lines, strings.Join(cells, ", "))
	}
	return prompt.Prompt{
		System: "You explain SQL query results in plain English.",
		User: fmt.Sprintf(
			"The user asked: %q\nThe SQL is: %s\nHere are the top rows of the result:\n%s\n\n"+
				"Write a short (1-2 sentence) explanation of what this result shows.",
			strings.TrimSpace(userInput), statement, strings.Join(lines, "\n"),
		),
	}
}
