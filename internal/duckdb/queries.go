package duckdb

import (
	"database/sql"
	"fmt"

	"github.com/tinytelemetry/flatstat/internal/model"
)

const defaultQueryLimit = 100

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	return limit
}

func scanPoints(rows *sql.Rows) ([]model.MetricPoint, error) {
	var out []model.MetricPoint
	for rows.Next() {
		var (
			p   model.MetricPoint
			num sql.NullFloat64
		)
		if err := rows.Scan(&p.CycleAt, &p.Name, &p.Kind, &num, &p.ValueText); err != nil {
			return nil, fmt.Errorf("duckdb: scanning point: %w", err)
		}
		if num.Valid {
			p.ValueNum = num.Float64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LatestValues returns the most recently stored datapoint per metric name.
func (s *Store) LatestValues(limit int) ([]model.MetricPoint, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle_at, name, kind, value_num, value_text
		FROM metrics
		QUALIFY row_number() OVER (PARTITION BY name ORDER BY cycle_at DESC) = 1
		ORDER BY name
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("duckdb: latest values: %w", err)
	}
	defer rows.Close()
	return scanPoints(rows)
}

// MetricHistory returns stored datapoints for one metric, newest first.
func (s *Store) MetricHistory(name string, limit int) ([]model.MetricPoint, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle_at, name, kind, value_num, value_text
		FROM metrics
		WHERE name = ?
		ORDER BY cycle_at DESC
		LIMIT ?`, name, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("duckdb: history for %s: %w", name, err)
	}
	defer rows.Close()
	return scanPoints(rows)
}

// ListNames returns known metric names with their stored datapoint counts.
func (s *Store) ListNames(limit int) ([]model.NameCount, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, count(*) AS n
		FROM metrics
		GROUP BY name
		ORDER BY name
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("duckdb: listing names: %w", err)
	}
	defer rows.Close()

	var out []model.NameCount
	for rows.Next() {
		var nc model.NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, fmt.Errorf("duckdb: scanning name count: %w", err)
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

// TotalPointCount returns how many datapoints are stored in total.
func (s *Store) TotalPointCount() (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM metrics").Scan(&n); err != nil {
		return 0, fmt.Errorf("duckdb: counting points: %w", err)
	}
	return n, nil
}
