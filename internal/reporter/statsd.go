package reporter

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/tinytelemetry/flatstat/internal/model"
)

// maxStatsdPacket keeps multi-metric datagrams under a safe MTU.
const maxStatsdPacket = 1400

// StatsdReporter submits numeric metrics as statsd gauges over UDP,
// batching several "<name>:<value>|g" lines per datagram. String-kind
// metrics are skipped.
type StatsdReporter struct {
	addr    string
	prefix  string
	timeout time.Duration
}

// NewStatsd creates a statsd reporter.
func NewStatsd(addr, prefix string) *StatsdReporter {
	return &StatsdReporter{
		addr:    addr,
		prefix:  prefix,
		timeout: DefaultDialTimeout,
	}
}

func (r *StatsdReporter) Name() string { return "statsd" }

func (r *StatsdReporter) Report(ctx context.Context, snap model.Snapshot) error {
	dialer := net.Dialer{Timeout: r.timeout}
	conn, err := dialer.DialContext(ctx, "udp", r.addr)
	if err != nil {
		return fmt.Errorf("reporter: statsd dial %s: %w", r.addr, err)
	}
	defer conn.Close()

	var packet []byte
	flush := func() error {
		if len(packet) == 0 {
			return nil
		}
		if _, err := conn.Write(packet); err != nil {
			return fmt.Errorf("reporter: statsd write: %w", err)
		}
		packet = packet[:0]
		return nil
	}

	for _, rec := range sortedRecords(snap) {
		value, ok := numericText(rec)
		if !ok {
			continue
		}
		line := fmt.Sprintf("%s%s:%s|g", r.prefix, rec.Name, value)
		if len(line) > maxStatsdPacket {
			// One gauge that cannot fit a datagram on its own is
			// undeliverable; dropping it keeps the rest of the batch intact.
			log.Printf("reporter: statsd gauge %s is %d bytes, over the %d byte packet limit, skipping", rec.Name, len(line), maxStatsdPacket)
			continue
		}
		if len(packet)+len(line)+1 > maxStatsdPacket {
			if err := flush(); err != nil {
				return err
			}
		}
		if len(packet) > 0 {
			packet = append(packet, '\n')
		}
		packet = append(packet, line...)
	}
	return flush()
}
