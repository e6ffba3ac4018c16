// File path: internal/sqlquery/executor.go
package sqlquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Azure-Samples/infra-support-copilot/internal/common"
)

const defaultQueryTimeout = 30 * time.Second

// RowSet is a bounded, typed result set.
type RowSet struct {
	Columns []string
	Rows    [][]any
}

// Executor runs guard-approved queries against the read path. It bounds
// execution time and row count even though the guard already caps rows.
type Executor struct {
	db      *sqlx.DB
	timeout time.Duration
	maxRows int
}

func NewExecutor(db *sqlx.DB, timeout time.Duration, maxRows int) *Executor {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &Executor{db: db, timeout: timeout, maxRows: maxRows}
}

// Execute runs the query under a deadline. A transport failure is retried
// once with the identical statement; semantics are never altered on retry.
func (e *Executor) Execute(ctx context.Context, query Query) (*RowSet, error) {
	if e == nil || e.db == nil {
		return nil, &ExecutionError{Err: errors.New("executor not initialised")}
	}
	logger := common.Logger()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.query(ctx, query)
	if err != nil {
		if execErr := classify(ctx, err); execErr.Timeout {
			logger.Error("sqlquery: execution timed out", "timeout", e.timeout)
			return nil, execErr
		}
		logger.Warn("sqlquery: execution failed, retrying once", "error", err)
		rows, err = e.query(ctx, query)
		if err != nil {
			logger.Error("sqlquery: execution failed", "error", err)
			return nil, classify(ctx, err)
		}
	}
	logger.Info("sqlquery: query executed", "rows", len(rows.Rows))
	return rows, nil
}

func (e *Executor) query(ctx context.Context, query Query) (*RowSet, error) {
	rows, err := e.db.QueryxContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &RowSet{Columns: cols}
	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			break
		}
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func classify(ctx context.Context, err error) *ExecutionError {
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	return &ExecutionError{Err: err, Timeout: timeout}
}

// Markdown renders the result as a pipe table, truncated once the output
// exceeds maxChars.
func (r *RowSet) Markdown(maxChars int) string {
	if r == nil || len(r.Rows) == 0 {
		return "(no rows)"
	}
	if maxChars <= 0 {
		maxChars = 4000
	}
	lines := []string{
		strings.Join(r.Columns, " | "),
		strings.Join(repeat("---", len(r.Columns)), " | "),
	}
	total := len(lines[0]) + len(lines[1])
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = cellString(value)
		}
		line := strings.Join(cells, " | ")
		total += len(line)
		if total > maxChars {
			lines = append(lines, "... (truncated) ...")
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func cellString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
