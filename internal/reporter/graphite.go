package reporter

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/tinytelemetry/flatstat/internal/model"
)

// DefaultDialTimeout bounds connection setup for network reporters.
const DefaultDialTimeout = 5 * time.Second

// GraphiteReporter submits numeric metrics over the Graphite plaintext
// protocol: "<prefix><name> <value> <unix-ts>". String-kind metrics are
// skipped; the protocol carries numbers only. A fresh connection is made
// per report so a restarted Graphite never wedges the collector.
type GraphiteReporter struct {
	addr    string
	prefix  string
	timeout time.Duration
}

// NewGraphite creates a Graphite reporter. prefix, when non-empty, should
// include its trailing separator (for example "stats.").
func NewGraphite(addr, prefix string) *GraphiteReporter {
	return &GraphiteReporter{
		addr:    addr,
		prefix:  prefix,
		timeout: DefaultDialTimeout,
	}
}

func (r *GraphiteReporter) Name() string { return "graphite" }

func (r *GraphiteReporter) Report(ctx context.Context, snap model.Snapshot) error {
	dialer := net.Dialer{Timeout: r.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return fmt.Errorf("reporter: graphite dial %s: %w", r.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	ts := snap.TakenAt.Unix()
	w := bufio.NewWriter(conn)
	for _, rec := range sortedRecords(snap) {
		value, ok := numericText(rec)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s%s %s %d\n", r.prefix, rec.Name, value, ts); err != nil {
			return fmt.Errorf("reporter: graphite write: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("reporter: graphite flush: %w", err)
	}
	return nil
}
