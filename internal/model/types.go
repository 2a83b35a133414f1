package model

import "time"

// MetricKind classifies a metric value for reporting backends.
type MetricKind string

const (
	KindInteger MetricKind = "integer"
	KindFloat   MetricKind = "float"
	KindString  MetricKind = "string"
)

// MetricRecord represents one flattened metric ready for reporting.
// It is the canonical type for storage, transport, and display.
// Value holds int64 (or json.Number for whole numbers wider than int64)
// when Kind is KindInteger, float64 when KindFloat, string when KindString.
type MetricRecord struct {
	Name  string
	Value any
	Kind  MetricKind
}

// Snapshot is one emitted collection cycle: the records plus the wall-time
// window they were accumulated over.
type Snapshot struct {
	TakenAt  time.Time
	Duration time.Duration
	Records  []MetricRecord
}

// MetricPoint represents one stored datapoint of a metric's history.
type MetricPoint struct {
	CycleAt   time.Time
	Name      string
	Kind      MetricKind
	ValueNum  float64
	ValueText string
}

// NameCount represents a metric name and how many datapoints it has stored.
type NameCount struct {
	Name  string
	Count int64
}
