package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tinytelemetry/flatstat/internal/flatten"
	"github.com/tinytelemetry/flatstat/internal/model"
)

// DecodeError reports a line that is not one valid JSON document. It carries
// the raw line so callers can log or quarantine it; whether to skip or abort
// is the caller's policy.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ingest: invalid JSON line: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Parser turns newline-delimited JSON documents into accumulated flat
// metrics. State is last-value-wins per flat key and sticky across lines:
// a key missing from a later line keeps its previous value until the cycle
// ends. One parser serves one collection cycle and is not goroutine-safe;
// lines must be fed in arrival order.
type Parser struct {
	sep    string
	filter flatten.KeyFilter
	state  map[string]any
}

// NewParser validates the separator and creates an empty parser.
// A nil filter means identity.
func NewParser(sep string, filter flatten.KeyFilter) (*Parser, error) {
	if sep == "" {
		return nil, errors.New("ingest: key separator is empty")
	}
	if strings.Contains(sep, "/") {
		return nil, errors.New("ingest: key separator must not contain '/'")
	}
	return &Parser{
		sep:    sep,
		filter: filter,
		state:  make(map[string]any),
	}, nil
}

// ParseLine decodes one JSON document, flattens it, and merges the result
// into the accumulated state. On any error the state is left untouched:
// partial flattening results are never merged.
func (p *Parser) ParseLine(line string) error {
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &DecodeError{Line: line, Err: err}
	}
	// Each line must be exactly one document.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &DecodeError{Line: line, Err: errors.New("trailing data after JSON document")}
	}

	flat, err := flatten.Flatten(doc, p.sep, p.filter)
	if err != nil {
		if errors.Is(err, flatten.ErrNotContainer) {
			return &DecodeError{Line: line, Err: err}
		}
		return err
	}

	for k, v := range flat {
		p.state[k] = v
	}
	return nil
}

// Size returns the number of accumulated flat keys.
func (p *Parser) Size() int { return len(p.state) }

// Snapshot classifies the accumulated state into fresh metric records.
// duration is the wall-time window the records cover; it is passed through
// for reporters and not used in any computation. The state is left intact,
// so an unchanged state yields an identical snapshot when asked again.
func (p *Parser) Snapshot(duration time.Duration) model.Snapshot {
	records := make([]model.MetricRecord, 0, len(p.state))
	for name, value := range p.state {
		records = append(records, classify(name, value))
	}
	return model.Snapshot{
		TakenAt:  time.Now(),
		Duration: duration,
		Records:  records,
	}
}

// Cycle emits a snapshot and resets the parser for the next collection
// cycle with a fresh empty state.
func (p *Parser) Cycle(duration time.Duration) model.Snapshot {
	snap := p.Snapshot(duration)
	p.state = make(map[string]any)
	return snap
}
