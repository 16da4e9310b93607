package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openfiredata/bdqueimadas/internal/model"
	"github.com/openfiredata/bdqueimadas/internal/observability"
)

// Executor runs exactly one parameterized statement per call against the
// pool and normalizes the result into ordered rows. The connection backing
// the query is released back to the pool on every path; an acquisition
// failure surfaces before any slot is consumed.
type Executor struct {
	pool    *Pool
	logger  *slog.Logger
	timeout time.Duration
}

func NewExecutor(pool *Pool, logger *slog.Logger, timeout time.Duration) *Executor {
	return &Executor{pool: pool, logger: logger, timeout: timeout}
}

func (e *Executor) Query(ctx context.Context, sql string, args ...any) ([]model.Row, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := e.pool.pool.Query(ctx, sql, args...)
	if err != nil {
		observability.ObserveQuery("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()

	var out []model.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			observability.ObserveQuery("error", time.Since(start).Seconds())
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(model.Row, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		observability.ObserveQuery("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	dur := time.Since(start)
	observability.ObserveQuery("ok", dur.Seconds())
	e.logger.Debug("query done", "rows", len(out), "duration", dur.String())
	return out, nil
}
