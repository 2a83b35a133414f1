package model

import "time"

// Shared defaults used by both the collector and dashboard binaries.
const (
	DefaultKeySeparator   = "."
	DefaultCycleInterval  = 60 * time.Second
	DefaultUpdateInterval = 2 * time.Second
	DefaultLineBuffer     = 10_000
)
