package reporter

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tinytelemetry/flatstat/internal/model"
)

// StdoutReporter prints each metric on its own line, the dry-run output
// format: name value kind.
type StdoutReporter struct {
	w io.Writer
}

// NewStdout creates a reporter writing to standard output.
func NewStdout() *StdoutReporter {
	return &StdoutReporter{w: os.Stdout}
}

// NewStdoutWriter creates a stdout-format reporter writing to w.
func NewStdoutWriter(w io.Writer) *StdoutReporter {
	return &StdoutReporter{w: w}
}

func (r *StdoutReporter) Name() string { return "stdout" }

func (r *StdoutReporter) Report(_ context.Context, snap model.Snapshot) error {
	for _, rec := range sortedRecords(snap) {
		if _, err := fmt.Fprintf(r.w, "%s %s %s\n", rec.Name, valueText(rec), rec.Kind); err != nil {
			return fmt.Errorf("reporter: stdout write: %w", err)
		}
	}
	return nil
}
