package reporter

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/tinytelemetry/flatstat/internal/model"
)

// Reporter delivers one emitted snapshot to a metrics backend.
// Implementations must be safe to call repeatedly from one goroutine;
// each call is an independent delivery attempt.
type Reporter interface {
	Name() string
	Report(ctx context.Context, snap model.Snapshot) error
}

// sortedRecords returns the snapshot's records ordered by name so text
// protocols produce stable output.
func sortedRecords(snap model.Snapshot) []model.MetricRecord {
	records := make([]model.MetricRecord, len(snap.Records))
	copy(records, snap.Records)
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records
}

// valueText renders any metric value as text.
func valueText(rec model.MetricRecord) string {
	switch v := rec.Value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// numericText renders a record's value for numeric-only wire protocols.
// String-kind records report ok=false and are skipped by those backends.
func numericText(rec model.MetricRecord) (string, bool) {
	if rec.Kind == model.KindString {
		return "", false
	}
	return valueText(rec), true
}
