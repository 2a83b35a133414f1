package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/flatstat/internal/duckdb"
	"github.com/tinytelemetry/flatstat/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCollector struct {
	snap model.Snapshot
	bad  int64
}

func (f *fakeCollector) CurrentSnapshot() model.Snapshot { return f.snap }
func (f *fakeCollector) BadLines() int64                 { return f.bad }

func newTestServer(t *testing.T) (*fakeCollector, *duckdb.Store, *gin.Engine) {
	t.Helper()
	store, err := duckdb.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	col := &fakeCollector{
		snap: model.Snapshot{
			TakenAt:  time.Now(),
			Duration: 30 * time.Second,
			Records: []model.MetricRecord{
				{Name: "req.count", Value: int64(42), Kind: model.KindInteger},
				{Name: "app.version", Value: "2.1", Kind: model.KindString},
			},
		},
		bad: 3,
	}

	srv := NewServer("", col, store)
	srv.startTime = time.Now()

	return col, store, srv.routes()
}

func getJSON(t *testing.T, r *gin.Engine, url string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Unregistered routes get gin's plain-text 404 body; only decode JSON.
	var body map[string]any
	if len(w.Body.Bytes()) > 0 && strings.Contains(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal %s: %v", url, err)
		}
	}
	return w.Code, body
}

func TestHealthEndpoint(t *testing.T) {
	_, _, r := newTestServer(t)

	code, body := getJSON(t, r, "/api/health")
	if code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", code, http.StatusOK)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["bad_lines"] != float64(3) {
		t.Errorf("bad_lines = %v, want 3", body["bad_lines"])
	}
	if _, ok := body["stored_points"]; !ok {
		t.Error("health missing stored_points")
	}
}

func TestMetricsEndpointReturnsLiveCycle(t *testing.T) {
	_, _, r := newTestServer(t)

	code, body := getJSON(t, r, "/api/metrics")
	if code != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", code, http.StatusOK)
	}

	metrics, ok := body["metrics"].([]any)
	if !ok || len(metrics) != 2 {
		t.Fatalf("metrics = %v, want 2 entries", body["metrics"])
	}
	first := metrics[0].(map[string]any)
	if first["name"] != "req.count" || first["kind"] != "integer" || first["value"] != float64(42) {
		t.Errorf("first metric = %v", first)
	}
}

func TestNamesEndpoint(t *testing.T) {
	_, store, r := newTestServer(t)

	snap := model.Snapshot{
		TakenAt:  time.Now(),
		Duration: time.Minute,
		Records:  []model.MetricRecord{{Name: "cpu.load", Value: 1.5, Kind: model.KindFloat}},
	}
	if err := store.InsertSnapshot(snap); err != nil {
		t.Fatalf("InsertSnapshot: %v", err)
	}

	code, body := getJSON(t, r, "/api/metrics/names")
	if code != http.StatusOK {
		t.Fatalf("names status = %d, want %d", code, http.StatusOK)
	}
	names := body["names"].([]any)
	if len(names) != 1 {
		t.Fatalf("names = %v, want 1 entry", names)
	}
	entry := names[0].(map[string]any)
	if entry["name"] != "cpu.load" || entry["points"] != float64(1) {
		t.Errorf("entry = %v", entry)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	_, store, r := newTestServer(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		snap := model.Snapshot{
			TakenAt:  base.Add(time.Duration(i) * time.Minute),
			Duration: time.Minute,
			Records:  []model.MetricRecord{{Name: "x", Value: int64(i), Kind: model.KindInteger}},
		}
		if err := store.InsertSnapshot(snap); err != nil {
			t.Fatalf("InsertSnapshot: %v", err)
		}
	}

	code, body := getJSON(t, r, "/api/metrics/history?name=x&limit=10")
	if code != http.StatusOK {
		t.Fatalf("history status = %d, want %d", code, http.StatusOK)
	}
	points := body["points"].([]any)
	if len(points) != 2 {
		t.Fatalf("points = %v, want 2", points)
	}
	newest := points[0].(map[string]any)
	if newest["value_num"] != float64(1) {
		t.Errorf("newest = %v, want value_num 1", newest)
	}
}

func TestHistoryEndpointRequiresName(t *testing.T) {
	_, _, r := newTestServer(t)

	code, _ := getJSON(t, r, "/api/metrics/history")
	if code != http.StatusBadRequest {
		t.Errorf("history without name status = %d, want %d", code, http.StatusBadRequest)
	}
}

func TestHistoryRoutesAbsentWithoutStore(t *testing.T) {
	col := &fakeCollector{}
	srv := NewServer("", col, nil)
	srv.startTime = time.Now()
	r := srv.routes()

	code, _ := getJSON(t, r, "/api/metrics/names")
	if code != http.StatusNotFound {
		t.Errorf("names without store status = %d, want %d", code, http.StatusNotFound)
	}
	code, _ = getJSON(t, r, "/api/health")
	if code != http.StatusOK {
		t.Errorf("health without store status = %d, want %d", code, http.StatusOK)
	}
}

func TestMetricsEndpoint_WrongMethod(t *testing.T) {
	_, _, r := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("metrics POST status = %d, want 405 or 404", w.Code)
	}
}
