package logsource

import "github.com/tinytelemetry/flatstat/internal/model"

// LogSource is a unified interface for all raw-line input sources
// (file tail, TCP, stdin).
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of raw JSON lines
	Stop()                              // graceful shutdown
	Name() string                       // "file", "tcp", "stdin"
}
