package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MetricRow is one live metric as served by the collector API.
type MetricRow struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

// LiveMetrics is the /api/metrics response.
type LiveMetrics struct {
	TakenAt   time.Time   `json:"taken_at"`
	DurationS float64     `json:"duration_s"`
	Metrics   []MetricRow `json:"metrics"`
}

// Health is the /api/health response.
type Health struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	BadLines     int64  `json:"bad_lines"`
	StoredPoints int64  `json:"stored_points"`
}

// Client fetches collector state over the HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an API client for the given address (host:port).
func NewClient(addr string) *Client {
	return &Client{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) get(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tui: %s returned %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// LiveMetrics fetches the current cycle's accumulated metrics.
func (c *Client) LiveMetrics() (LiveMetrics, error) {
	var out LiveMetrics
	err := c.get("/api/metrics", &out)
	return out, err
}

// Health fetches collector health counters.
func (c *Client) Health() (Health, error) {
	var out Health
	err := c.get("/api/health", &out)
	return out, err
}
