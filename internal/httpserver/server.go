package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/flatstat/internal/model"
)

// Collector is the narrow contract the API needs from the collection loop.
type Collector interface {
	model.SnapshotProvider
	BadLines() int64
}

// Server provides an HTTP API for the live cycle and stored metric history.
type Server struct {
	addr      string
	collector Collector
	store     model.MetricQuerier
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. The store may be nil when
// history persistence is disabled; history endpoints then return 404.
func NewServer(addr string, collector Collector, store model.MetricQuerier) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		collector: collector,
		store:     store,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/metrics", s.handleMetrics)
	if s.store != nil {
		r.GET("/api/metrics/names", s.handleNames)
		r.GET("/api/metrics/history", s.handleHistory)
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).String(),
		"bad_lines": s.collector.BadLines(),
	}
	if s.store != nil {
		count, err := s.store.TotalPointCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read stored point count"})
			return
		}
		resp["stored_points"] = count
	}
	c.JSON(http.StatusOK, resp)
}

// metricJSON is the wire form of one live metric.
type metricJSON struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

func (s *Server) handleMetrics(c *gin.Context) {
	snap := s.collector.CurrentSnapshot()

	metrics := make([]metricJSON, 0, len(snap.Records))
	for _, rec := range snap.Records {
		v := rec.Value
		if n, ok := v.(json.Number); ok {
			v = n.String()
		}
		metrics = append(metrics, metricJSON{Name: rec.Name, Kind: string(rec.Kind), Value: v})
	}

	c.JSON(http.StatusOK, gin.H{
		"taken_at":   snap.TakenAt,
		"duration_s": snap.Duration.Seconds(),
		"metrics":    metrics,
	})
}

func (s *Server) handleNames(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	names, err := s.store.ListNames(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list metric names"})
		return
	}

	out := make([]gin.H, 0, len(names))
	for _, nc := range names {
		out = append(out, gin.H{"name": nc.Name, "points": nc.Count})
	}
	c.JSON(http.StatusOK, gin.H{"names": out})
}

func (s *Server) handleHistory(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name parameter"})
		return
	}

	points, err := s.store.MetricHistory(name, parseLimit(c.Query("limit")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read metric history"})
		return
	}

	out := make([]gin.H, 0, len(points))
	for _, p := range points {
		h := gin.H{
			"cycle_at": p.CycleAt,
			"kind":     string(p.Kind),
			"value":    p.ValueText,
		}
		if p.Kind != model.KindString {
			h["value_num"] = p.ValueNum
		}
		out = append(out, h)
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "points": out})
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
