package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/strrl/claude-history/internal/orchestrator"
)

// DefaultQueryTimeout bounds a single DuckDB query
const DefaultQueryTimeout = 30 * time.Second

// readJSON renders a read_json table function call over glob with an explicit
// column list. Malformed lines are skipped rather than failing the scan.
func readJSON(glob, columns string) string {
	return fmt.Sprintf(`read_json(%s,
			format = 'newline_delimited',
			columns = {%s},
			filename = true,
			ignore_errors = true
		)`, sqlString(glob), columns)
}

type queryResult[T any] struct {
	rows []T
	err  error
}

// queryAsync runs query on a separate goroutine and scans every row with
// scan. Rows that fail to scan are skipped. The call returns as soon as ctx
// is done, even if DuckDB is still busy.
func queryAsync[T any](ctx context.Context, db *sql.DB, timeout time.Duration, name, query string, args []any, scan func(*sql.Rows) (T, error)) ([]T, error) {
	resultChan := make(chan queryResult[T], 1)

	go func() {
		queryCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		rows, err := db.QueryContext(queryCtx, query, args...)
		if err != nil {
			resultChan <- queryResult[T]{err: err}
			return
		}
		defer rows.Close()

		var out []T
		for rows.Next() {
			if queryCtx.Err() != nil {
				resultChan <- queryResult[T]{err: queryCtx.Err()}
				return
			}
			v, err := scan(rows)
			if err != nil {
				continue
			}
			out = append(out, v)
		}
		resultChan <- queryResult[T]{rows: out, err: rows.Err()}
	}()

	select {
	case result := <-resultChan:
		if result.err != nil {
			return nil, wrapQueryErr(ctx, name, result.err)
		}
		return result.rows, nil
	case <-ctx.Done():
		return nil, wrapQueryErr(ctx, name, ctx.Err())
	}
}

func wrapQueryErr(ctx context.Context, name string, err error) error {
	if ctx.Err() == context.Canceled || errors.Is(err, context.Canceled) {
		return errors.Wrapf(orchestrator.ErrCancelled, "%s query", name)
	}
	return errors.Wrapf(orchestrator.ErrIO, "%s query: %v", name, err)
}

func nullString(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}

// parseTime accepts the timestamp formats found in transcripts
func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999-07", "2006-01-02 15:04:05.999999"} {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t.Local()
		}
	}
	return time.Time{}
}
