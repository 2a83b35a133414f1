package model

// IngestEnvelope carries one raw log line with source metadata.
// It is the transport contract between input sources and the collector loop.
type IngestEnvelope struct {
	Source string
	Line   string
}
