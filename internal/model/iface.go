package model

// MetricWriter provides append-oriented write operations for emitted snapshots.
type MetricWriter interface {
	InsertSnapshot(snap Snapshot) error
}

// MetricQuerier provides read-only queries on stored metric history.
type MetricQuerier interface {
	LatestValues(limit int) ([]MetricPoint, error)
	MetricHistory(name string, limit int) ([]MetricPoint, error)
	ListNames(limit int) ([]NameCount, error)
	TotalPointCount() (int64, error)
}

// SnapshotProvider exposes the live accumulated state of the running
// collection cycle, without waiting for the cycle boundary.
type SnapshotProvider interface {
	CurrentSnapshot() Snapshot
}
