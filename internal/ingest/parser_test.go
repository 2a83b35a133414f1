package ingest

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tinytelemetry/flatstat/internal/flatten"
	"github.com/tinytelemetry/flatstat/internal/model"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(".", nil)
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	return p
}

func recordMap(snap model.Snapshot) map[string]model.MetricRecord {
	out := make(map[string]model.MetricRecord, len(snap.Records))
	for _, r := range snap.Records {
		out[r.Name] = r
	}
	return out
}

func TestNewParserRejectsBadSeparator(t *testing.T) {
	if _, err := NewParser("", nil); err == nil {
		t.Error("empty separator accepted")
	}
	if _, err := NewParser("/", nil); err == nil {
		t.Error("slash separator accepted")
	}
	if _, err := NewParser("a/b", nil); err == nil {
		t.Error("separator containing slash accepted")
	}
}

func TestParseLineFlattensIntoState(t *testing.T) {
	p := newTestParser(t)

	if err := p.ParseLine(`{"a":{"b":1,"c":[2,3]}}`); err != nil {
		t.Fatalf("ParseLine: %v", err)
	}

	got := recordMap(p.Snapshot(0))
	for name, want := range map[string]int64{"a.b": 1, "a.c.0": 2, "a.c.1": 3} {
		r, ok := got[name]
		if !ok {
			t.Fatalf("missing %s in %v", name, got)
		}
		if r.Kind != model.KindInteger || r.Value != want {
			t.Errorf("%s = (%v, %s), want (%d, integer)", name, r.Value, r.Kind, want)
		}
	}
}

func TestLastValueWins(t *testing.T) {
	p := newTestParser(t)

	for _, line := range []string{`{"a":1}`, `{"a":2}`} {
		if err := p.ParseLine(line); err != nil {
			t.Fatalf("ParseLine(%s): %v", line, err)
		}
	}

	got := recordMap(p.Snapshot(0))
	if got["a"].Value != int64(2) {
		t.Errorf("a = %v, want 2", got["a"].Value)
	}
}

func TestOrderSensitivity(t *testing.T) {
	// Same lines in the opposite order must give the opposite winner.
	p := newTestParser(t)
	for _, line := range []string{`{"a":2}`, `{"a":1}`} {
		if err := p.ParseLine(line); err != nil {
			t.Fatalf("ParseLine: %v", err)
		}
	}

	got := recordMap(p.Snapshot(0))
	if got["a"].Value != int64(1) {
		t.Errorf("a = %v, want 1", got["a"].Value)
	}
}

func TestStickyPersistence(t *testing.T) {
	p := newTestParser(t)

	for _, line := range []string{`{"a":1,"b":2}`, `{"a":3}`} {
		if err := p.ParseLine(line); err != nil {
			t.Fatalf("ParseLine: %v", err)
		}
	}

	got := recordMap(p.Snapshot(0))
	if got["a"].Value != int64(3) {
		t.Errorf("a = %v, want 3", got["a"].Value)
	}
	if got["b"].Value != int64(2) {
		t.Errorf("b = %v, want 2 (sticky keys must persist)", got["b"].Value)
	}
}

func TestIdenticalReprocessingIsIdempotent(t *testing.T) {
	line := `{"x":{"y":1.5},"z":"v"}`

	once := newTestParser(t)
	twice := newTestParser(t)
	if err := once.ParseLine(line); err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := twice.ParseLine(line); err != nil {
			t.Fatalf("ParseLine: %v", err)
		}
	}

	a, b := recordMap(once.Snapshot(0)), recordMap(twice.Snapshot(0))
	if len(a) != len(b) {
		t.Fatalf("state size %d != %d", len(a), len(b))
	}
	for name, r := range a {
		if b[name] != r {
			t.Errorf("%s = %v vs %v", name, r, b[name])
		}
	}
}

func TestDecodeFailureLeavesStateUntouched(t *testing.T) {
	p := newTestParser(t)
	if err := p.ParseLine(`{"a":1}`); err != nil {
		t.Fatalf("ParseLine: %v", err)
	}

	err := p.ParseLine(`{"a": nope}`)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
	if decodeErr.Line != `{"a": nope}` {
		t.Errorf("DecodeError.Line = %q", decodeErr.Line)
	}

	got := recordMap(p.Snapshot(0))
	if len(got) != 1 || got["a"].Value != int64(1) {
		t.Errorf("state corrupted by bad line: %v", got)
	}
}

func TestTrailingDataRejected(t *testing.T) {
	p := newTestParser(t)

	err := p.ParseLine(`{"a":1} {"b":2}`)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
	if p.Size() != 0 {
		t.Errorf("state not empty after rejected line: %d keys", p.Size())
	}
}

func TestBareScalarDocumentRejected(t *testing.T) {
	p := newTestParser(t)

	for _, line := range []string{`42`, `"text"`, `true`, `null`} {
		err := p.ParseLine(line)
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Errorf("ParseLine(%s) err = %v, want *DecodeError", line, err)
		}
	}
	if p.Size() != 0 {
		t.Errorf("scalar documents leaked %d keys into state", p.Size())
	}
}

func TestFilterErrorDiscardsLine(t *testing.T) {
	boom := errors.New("boom")
	filter := func(key string) (string, error) {
		if key == "bad" {
			return "", boom
		}
		return key, nil
	}
	p, err := NewParser(".", filter)
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}

	if err := p.ParseLine(`{"ok":1}`); err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if err := p.ParseLine(`{"also":1,"bad":2}`); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}

	// Nothing from the failed line may have merged, not even keys the
	// filter accepted.
	got := recordMap(p.Snapshot(0))
	if len(got) != 1 {
		t.Errorf("state = %v, want only ok", got)
	}
}

func TestParserSkipFilter(t *testing.T) {
	filter := func(key string) (string, error) {
		if key == "secret" {
			return "", flatten.ErrSkipKey
		}
		return key, nil
	}
	p, err := NewParser(".", filter)
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}

	if err := p.ParseLine(`{"secret":{"a":1},"ok":2}`); err != nil {
		t.Fatalf("ParseLine: %v", err)
	}

	got := recordMap(p.Snapshot(0))
	if len(got) != 1 || got["ok"].Value != int64(2) {
		t.Errorf("state = %v, want only ok=2", got)
	}
}

func TestSnapshotDurationPassthrough(t *testing.T) {
	p := newTestParser(t)

	snap := p.Snapshot(42 * time.Second)
	if snap.Duration != 42*time.Second {
		t.Errorf("Duration = %v, want 42s", snap.Duration)
	}
}

func TestCycleResetsState(t *testing.T) {
	p := newTestParser(t)
	if err := p.ParseLine(`{"a":1}`); err != nil {
		t.Fatalf("ParseLine: %v", err)
	}

	snap := p.Cycle(time.Second)
	if len(snap.Records) != 1 {
		t.Fatalf("Cycle emitted %d records, want 1", len(snap.Records))
	}
	if p.Size() != 0 {
		t.Errorf("state not reset after Cycle: %d keys", p.Size())
	}

	// A key from the previous cycle must not be sticky across the boundary.
	if err := p.ParseLine(`{"b":2}`); err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	got := recordMap(p.Snapshot(0))
	if _, ok := got["a"]; ok {
		t.Error("key a survived the cycle boundary")
	}
}

func TestSnapshotRegeneratesIdentically(t *testing.T) {
	p := newTestParser(t)
	if err := p.ParseLine(`{"a":1,"b":true,"c":"x"}`); err != nil {
		t.Fatalf("ParseLine: %v", err)
	}

	first := recordMap(p.Snapshot(0))
	second := recordMap(p.Snapshot(0))
	if len(first) != len(second) {
		t.Fatalf("snapshot sizes differ: %d vs %d", len(first), len(second))
	}
	for name, r := range first {
		if second[name] != r {
			t.Errorf("%s differs across snapshots: %v vs %v", name, r, second[name])
		}
	}
}

func TestLargeIntegerSurvivesDecode(t *testing.T) {
	p := newTestParser(t)
	if err := p.ParseLine(`{"big":123456789012345}`); err != nil {
		t.Fatalf("ParseLine: %v", err)
	}

	got := recordMap(p.Snapshot(0))
	r := got["big"]
	if r.Kind != model.KindInteger || r.Value != int64(123456789012345) {
		t.Errorf("big = (%v, %s), want (123456789012345, integer)", r.Value, r.Kind)
	}
}

func TestIntegerWiderThanInt64KeepsPrecision(t *testing.T) {
	p := newTestParser(t)
	if err := p.ParseLine(`{"huge":123456789012345678901234567890}`); err != nil {
		t.Fatalf("ParseLine: %v", err)
	}

	got := recordMap(p.Snapshot(0))
	r := got["huge"]
	if r.Kind != model.KindInteger {
		t.Fatalf("huge kind = %s, want integer", r.Kind)
	}
	if n, ok := r.Value.(json.Number); !ok || n.String() != "123456789012345678901234567890" {
		t.Errorf("huge = %v (%T), precision lost", r.Value, r.Value)
	}
}
