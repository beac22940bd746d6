package nl2sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatdb/chatdb/internal/observability"
	"github.com/chatdb/chatdb/internal/prompt"
	"github.com/chatdb/chatdb/internal/sqlstore"
)

const defaultRowLimit = 100

const columnsQuery = `SELECT table_name, column_name, data_type FROM information_schema.columns ` +
	`WHERE table_schema = %s ORDER BY table_name, ordinal_position`

type Config struct {
	RowLimit       int
	ExplainResults bool
}

type Service struct {
	pools  *sqlstore.Pools
	oracle Oracle
	cfg    Config
	logger *slog.Logger
}

func NewService(pools *sqlstore.Pools, oracle Oracle, cfg Config, logger *slog.Logger) (*Service, error) {
	if pools == nil {
		return nil, errors.New("sql pools are required")
	}
	if oracle == nil {
		return nil, errors.New("oracle is required")
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = defaultRowLimit
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{pools: pools, oracle: oracle, cfg: cfg, logger: logger}, nil
}

func (s *Service) Databases() []string {
	return s.pools.Names()
}

// Handle loads the schema text, asks the oracle for the request type and
// runs the matching path. With a single configured database the db_name
// may be omitted.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	userInput := strings.TrimSpace(req.UserInput)
	if userInput == "" {
		return Response{}, ErrMissingInput
	}
	name := strings.TrimSpace(req.DBName)
	if names := s.pools.Names(); name == "" && len(names) == 1 {
		name = names[0]
	}
	db, ok := s.pools.Lookup(name)
	if !ok {
		return Response{}, &InvalidDatabaseError{Name: name, Available: s.pools.Names()}
	}

	schemaText, err := s.schemaText(ctx, db)
	if err != nil {
		return Response{}, err
	}

	p := intentPrompt(userInput)
	raw, err := s.oracle.CompleteText(ctx, p.System, p.User)
	if err != nil {
		return Response{}, fmt.Errorf("classify sql intent: %w", err)
	}
	intent, err := ParseIntent(raw)
	if err != nil {
		return Response{}, err
	}
	observability.IncrementIntent("sql_" + string(intent))
	s.logger.InfoContext(ctx, "sql_intent_classified",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("database", name),
		slog.String("intent", string(intent)),
	)

	switch intent {
	case IntentSchema:
		p := schemaAnswerPrompt(userInput, schemaText, s.pools.Driver)
		answer, err := s.oracle.CompleteText(ctx, p.System, p.User)
		if err != nil {
			return Response{}, fmt.Errorf("answer schema question: %w", err)
		}
		return Response{Intent: intent, Answer: strings.TrimSpace(answer)}, nil
	case IntentQuery:
		return s.runSelect(ctx, db, userInput, schemaText)
	default:
		return s.runModification(ctx, db, userInput, schemaText)
	}
}

func (s *Service) schemaText(ctx context.Context, db *sql.DB) (string, error) {
	predicate := "current_schema()"
	if s.pools.Driver == sqlstore.DriverMySQL {
		predicate = "DATABASE()"
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(columnsQuery, predicate))
	if err != nil {
		return "", fmt.Errorf("load schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		tables  []string
		columns = map[string][]string{}
	)
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return "", fmt.Errorf("scan schema row: %w", err)
		}
		if _, ok := columns[table]; !ok {
			tables = append(tables, table)
		}
		columns[table] = append(columns[table], fmt.Sprintf("%s (%s)", column, dataType))
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate schema rows: %w", err)
	}
	if len(tables) == 0 {
		return "(no tables)", nil
	}

	lines := make([]string, 0, len(tables))
	for _, table := range tables {
		lines = append(lines, table+": "+strings.Join(columns[table], ", "))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Service) synthesize(ctx context.Context, p prompt.Prompt) (string, error) {
	raw, err := s.oracle.CompleteText(ctx, p.System, p.User)
	if err != nil {
		return "", fmt.Errorf("synthesize sql: %w", err)
	}
	statement, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	if err := CheckSafe(statement); err != nil {
		return "", err
	}
	return statement, nil
}

func (s *Service) runSelect(ctx context.Context, db *sql.DB, userInput, schemaText string) (Response, error) {
	statement, err := s.synthesize(ctx, selectPrompt(userInput, schemaText, s.pools.Driver, s.cfg.RowLimit))
	if err != nil {
		return Response{}, err
	}
	if kind := Classify(statement); kind != StatementSelect {
		return Response{}, &UnexpectedStatementError{Intent: IntentQuery, Kind: kind, SQL: statement}
	}
	statement = EnforceLimit(statement, s.cfg.RowLimit)

	columns, results, err := query(ctx, db, statement)
	observability.IncrementSQLStatement(string(StatementSelect), err)
	if err != nil {
		return Response{}, &ExecutionError{SQL: statement, Err: err}
	}

	resp := Response{Intent: IntentQuery, SQL: statement, Columns: columns, Results: results}
	switch {
	case len(results) == 0:
		resp.Explanation = fmt.Sprintf("No results found for your query: %q", userInput)
	case s.cfg.ExplainResults:
		p := explainPrompt(userInput, statement, results)
		explanation, err := s.oracle.CompleteText(ctx, p.System, p.User)
		if err != nil {
			s.logger.WarnContext(ctx, "sql_explanation_failed",
				slog.String("trace_id", observability.TraceIDFromContext(ctx)),
				slog.String("error", err.Error()),
			)
			break
		}
		resp.Explanation = strings.TrimSpace(explanation)
	}
	return resp, nil
}

func (s *Service) runModification(ctx context.Context, db *sql.DB, userInput, schemaText string) (Response, error) {
	statement, err := s.synthesize(ctx, modifyPrompt(userInput, schemaText, s.pools.Driver))
	if err != nil {
		return Response{}, err
	}
	kind := Classify(statement)
	switch kind {
	case StatementInsert, StatementUpdate, StatementDelete:
	default:
		return Response{}, &UnexpectedStatementError{Intent: IntentModification, Kind: kind, SQL: statement}
	}

	affected, err := execInTx(ctx, db, statement)
	observability.IncrementSQLStatement(string(kind), err)
	if err != nil {
		return Response{}, &ExecutionError{SQL: statement, Err: err}
	}
	s.logger.InfoContext(ctx, "sql_modification_executed",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("kind", string(kind)),
		slog.Int64("rows_affected", affected),
	)
	return Response{
		Intent:       IntentModification,
		SQL:          statement,
		Status:       strings.ToUpper(string(kind)) + " executed successfully.",
		RowsAffected: &affected,
	}, nil
}

func query(ctx context.Context, db *sql.DB, statement string) ([]string, [][]any, error) {
	rows, err := db.QueryContext(ctx, statement)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}
	results := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, results, nil
}

func execInTx(ctx context.Context, db *sql.DB, statement string) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	result, err := tx.ExecContext(ctx, statement)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return affected, nil
}
