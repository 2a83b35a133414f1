package duckdb

import (
	"encoding/json"
	"fmt"

	"github.com/tinytelemetry/flatstat/internal/model"
)

// InsertSnapshot persists all records of one collection cycle in a single
// transaction, so a cycle is either fully stored or not at all.
func (s *Store) InsertSnapshot(snap model.Snapshot) error {
	if len(snap.Records) == 0 {
		return nil
	}

	ctx, cancel := s.queryCtx()
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("duckdb: begin insert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO metrics (cycle_at, name, kind, value_num, value_text, duration_s) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("duckdb: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range snap.Records {
		num, text := splitValue(rec)
		if _, err := stmt.ExecContext(ctx, snap.TakenAt, rec.Name, string(rec.Kind), num, text, snap.Duration.Seconds()); err != nil {
			return fmt.Errorf("duckdb: insert %s: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("duckdb: commit insert tx: %w", err)
	}
	return nil
}

// splitValue maps a record value onto the numeric and text columns. String
// metrics store NULL in value_num; value_text always carries the exact
// rendering, including integers wider than float64 precision.
func splitValue(rec model.MetricRecord) (num any, text string) {
	switch v := rec.Value.(type) {
	case int64:
		return float64(v), fmt.Sprintf("%d", v)
	case float64:
		return v, fmt.Sprintf("%g", v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, v.String()
		}
		return nil, v.String()
	case string:
		return nil, v
	default:
		return nil, fmt.Sprintf("%v", v)
	}
}
