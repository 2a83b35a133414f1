package collect

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/tinytelemetry/flatstat/internal/ingest"
	"github.com/tinytelemetry/flatstat/internal/model"
	"github.com/tinytelemetry/flatstat/internal/reporter"
)

// errLogInterval throttles bad-line logging.
const errLogInterval = 10 * time.Second

// Config holds tunable parameters for the collection runner.
type Config struct {
	// Interval is the collection cycle length. Each tick emits the
	// accumulated state to all reporters and starts a fresh cycle.
	Interval time.Duration

	Reporters []reporter.Reporter

	// Store persists emitted snapshots. Optional.
	Store model.MetricWriter
}

// Runner drives the collection cycle: it consumes raw lines in arrival
// order, feeds them to the parser, and on every interval boundary emits a
// snapshot to the reporters and the store. Lines and ticks are handled in
// one goroutine so last-value-wins stays tied to arrival order; the mutex
// only guards live reads from the HTTP API.
type Runner struct {
	mu         sync.Mutex
	parser     *ingest.Parser
	cycleStart time.Time

	interval  time.Duration
	reporters []reporter.Reporter
	store     model.MetricWriter

	badLines   int64
	lastErrLog time.Time
}

// NewRunner creates a runner around a parser.
func NewRunner(parser *ingest.Parser, cfg Config) *Runner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = model.DefaultCycleInterval
	}
	return &Runner{
		parser:     parser,
		cycleStart: time.Now(),
		interval:   interval,
		reporters:  cfg.Reporters,
		store:      cfg.Store,
	}
}

// Run processes lines until ctx is cancelled or the channel closes, then
// emits one final snapshot so a short-lived run still reports.
func (r *Runner) Run(ctx context.Context, lines <-chan model.IngestEnvelope) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.mu.Lock()
	r.cycleStart = time.Now()
	r.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			r.emit(context.Background())
			return nil
		case env, ok := <-lines:
			if !ok {
				r.emit(context.Background())
				return nil
			}
			r.consume(env)
		case <-ticker.C:
			r.emit(ctx)
		}
	}
}

// consume parses one line; a bad line is counted and skipped, leaving the
// accumulated state untouched.
func (r *Runner) consume(env model.IngestEnvelope) {
	r.mu.Lock()
	err := r.parser.ParseLine(env.Line)
	if err != nil {
		r.badLines++
	}
	dropped := r.badLines
	r.mu.Unlock()
	if err == nil {
		return
	}

	var decodeErr *ingest.DecodeError
	if !errors.As(err, &decodeErr) || time.Since(r.lastErrLog) >= errLogInterval {
		r.lastErrLog = time.Now()
		log.Printf("collect: dropping line from %s (%d dropped so far): %v", env.Source, dropped, err)
	}
}

// emit closes the current cycle and delivers its snapshot.
func (r *Runner) emit(ctx context.Context) {
	r.mu.Lock()
	duration := time.Since(r.cycleStart)
	snap := r.parser.Cycle(duration)
	r.cycleStart = time.Now()
	r.mu.Unlock()

	if len(snap.Records) == 0 {
		return
	}

	for _, rep := range r.reporters {
		if err := rep.Report(ctx, snap); err != nil {
			log.Printf("collect: reporter %s: %v", rep.Name(), err)
		}
	}
	if r.store != nil {
		if err := r.store.InsertSnapshot(snap); err != nil {
			log.Printf("collect: storing snapshot: %v", err)
		}
	}
}

// CurrentSnapshot returns the live state of the running cycle without
// closing it. Safe to call from other goroutines.
func (r *Runner) CurrentSnapshot() model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parser.Snapshot(time.Since(r.cycleStart))
}

// BadLines returns how many lines have been dropped since start.
func (r *Runner) BadLines() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.badLines
}
