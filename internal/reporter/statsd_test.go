package reporter

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/flatstat/internal/model"
)

func TestStatsdReportSendsGauges(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	r := NewStatsd(pc.LocalAddr().String(), "app.")
	if err := r.Report(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Report: %v", err)
	}

	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 65536)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	got := strings.Split(string(buf[:n]), "\n")
	want := []string{
		"app.big.counter:99999999999999999999|g",
		"app.cpu.load:1.5|g",
		"app.req.count:42|g",
	}
	if len(got) != len(want) {
		t.Fatalf("gauges = %v, want %v (strings must be skipped)", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("gauge %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStatsdDropsGaugeWiderThanOnePacket(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	snap := testSnapshot()
	snap.Records = append(snap.Records, model.MetricRecord{
		Name:  strings.Repeat("n", maxStatsdPacket),
		Value: int64(1),
		Kind:  model.KindInteger,
	})

	r := NewStatsd(pc.LocalAddr().String(), "app.")
	if err := r.Report(context.Background(), snap); err != nil {
		t.Fatalf("Report: %v", err)
	}

	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 65536)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if n > maxStatsdPacket {
		t.Errorf("datagram size %d exceeds %d", n, maxStatsdPacket)
	}
	got := string(buf[:n])
	if strings.Contains(got, "nnnn") {
		t.Error("oversized gauge was sent instead of dropped")
	}
	if !strings.Contains(got, "app.req.count:42|g") {
		t.Errorf("remaining gauges missing from datagram: %q", got)
	}
}

func TestStatsdSplitsOversizedPackets(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	snap := testSnapshot()
	snap.Records = snap.Records[:0]
	for i := 0; i < 200; i++ {
		snap.Records = append(snap.Records, testSnapshot().Records[0])
	}

	r := NewStatsd(pc.LocalAddr().String(), strings.Repeat("p", 40)+".")
	if err := r.Report(context.Background(), snap); err != nil {
		t.Fatalf("Report: %v", err)
	}

	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 65536)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if n > maxStatsdPacket {
		t.Errorf("datagram size %d exceeds %d", n, maxStatsdPacket)
	}
}
