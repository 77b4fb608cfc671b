package sessions

import (
	"context"
	"database/sql"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/strrl/claude-history/pkg/models"
)

// statsQueries are the three aggregates a usage summary is built from.
// byModel yields (model, input, output), daily yields (YYYY-MM-DD, tokens)
// and counts yields a single (sessions, messages) row.
type statsQueries struct {
	byModel string
	daily   string
	counts  string
}

type modelUsage struct {
	model  string
	input  int64
	output int64
}

type sessionCounts struct {
	sessions int
	messages int
}

// collectStats runs the aggregates concurrently and folds them into one
// summary.
func collectStats(ctx context.Context, db *sql.DB, timeout time.Duration, q statsQueries) (models.TokenUsageSummary, error) {
	var (
		byModel []modelUsage
		daily   []models.DailyTokens
		counts  []sessionCounts
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byModel, err = queryAsync(gctx, db, timeout, "tokens by model", q.byModel, nil, func(rows *sql.Rows) (modelUsage, error) {
			var u modelUsage
			var model sql.NullString
			var input, output sql.NullInt64
			if err := rows.Scan(&model, &input, &output); err != nil {
				return u, err
			}
			u.model = nullString(model)
			u.input, u.output = input.Int64, output.Int64
			return u, nil
		})
		return err
	})
	g.Go(func() error {
		var err error
		daily, err = queryAsync(gctx, db, timeout, "daily tokens", q.daily, nil, func(rows *sql.Rows) (models.DailyTokens, error) {
			var d models.DailyTokens
			var tokens sql.NullInt64
			err := rows.Scan(&d.Date, &tokens)
			d.Tokens = tokens.Int64
			return d, err
		})
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = queryAsync(gctx, db, timeout, "session counts", q.counts, nil, func(rows *sql.Rows) (sessionCounts, error) {
			var c sessionCounts
			return c, rows.Scan(&c.sessions, &c.messages)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return models.TokenUsageSummary{}, err
	}

	return buildSummary(byModel, daily, counts), nil
}

func buildSummary(byModel []modelUsage, daily []models.DailyTokens, counts []sessionCounts) models.TokenUsageSummary {
	summary := models.TokenUsageSummary{
		TokensByModel: make(map[string]int64, len(byModel)),
		DailyTokens:   daily,
	}
	for _, u := range byModel {
		model := u.model
		if model == "" {
			model = "unknown"
		}
		summary.InputTokens += u.input
		summary.OutputTokens += u.output
		summary.TokensByModel[model] += u.input + u.output
	}
	summary.TotalTokens = summary.InputTokens + summary.OutputTokens
	if len(counts) > 0 {
		summary.SessionCount = counts[0].sessions
		summary.MessageCount = counts[0].messages
	}
	return summary
}
