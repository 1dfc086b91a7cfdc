// Package untrusted runs SQL text produced by the language model.
//
// Statements are executed exactly as received: no parameters, no allow-list,
// no rewriting. Every statement is logged before it runs so the exposure is
// visible in the process log and, when configured, in the query journal.
package untrusted

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"autodoc/api/internal/journal"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Recorder receives a journal entry for every executed statement.
type Recorder interface {
	Record(ctx context.Context, entry journal.Entry) error
}

type Executor struct {
	db       *sql.DB
	logger   zerolog.Logger
	recorder Recorder
}

func NewExecutor(db *sql.DB, logger zerolog.Logger, recorder Recorder) *Executor {
	return &Executor{db: db, logger: logger, recorder: recorder}
}

// Run executes statement verbatim and returns every row. question is the
// natural-language text that produced the statement and is only recorded.
func (e *Executor) Run(ctx context.Context, question, statement string) ([]Row, error) {
	start := time.Now()
	e.logger.Warn().
		Bool("untrusted", true).
		Str("statement", statement).
		Str("question", question).
		Msg("untrusted.exec")

	rows, err := e.query(ctx, statement)
	elapsed := time.Since(start)

	entry := journal.Entry{
		Statement: statement,
		Question:  question,
		RowCount:  len(rows),
		ElapsedMS: elapsed.Milliseconds(),
		At:        start.UTC(),
	}
	if err != nil {
		entry.Error = err.Error()
		e.logger.Error().Err(err).Str("statement", statement).Int64("elapsed_ms", entry.ElapsedMS).Msg("untrusted.exec.failed")
	} else {
		e.logger.Info().Int("rows", len(rows)).Int64("elapsed_ms", entry.ElapsedMS).Msg("untrusted.exec.ok")
	}
	e.record(ctx, entry)

	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (e *Executor) query(ctx context.Context, statement string) ([]Row, error) {
	rows, err := e.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("execute generated sql: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read generated sql columns: %w", err)
	}

	out := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan generated sql row: %w", err)
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			row[column] = normalize(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generated sql rows: %w", err)
	}
	return out, nil
}

func (e *Executor) record(ctx context.Context, entry journal.Entry) {
	if e.recorder == nil {
		return
	}
	// the request may already be cancelled; the journal write still goes through
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := e.recorder.Record(recordCtx, entry); err != nil {
		e.logger.Warn().Err(err).Msg("untrusted.journal.failed")
	}
}

func normalize(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	default:
		return value
	}
}
