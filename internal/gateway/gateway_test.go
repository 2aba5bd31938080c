package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/troupelabs/troupe/internal/metrics"
	"github.com/troupelabs/troupe/internal/pricing"
	"github.com/troupelabs/troupe/internal/provider"
	"github.com/troupelabs/troupe/internal/session"
)

type staticChat struct{ model string }

func (c *staticChat) SendStream(context.Context, string) (<-chan provider.StreamChunk, error) {
	ch := make(chan provider.StreamChunk, 1)
	ch <- provider.StreamChunk{Text: "ok", Usage: &provider.TokenUsage{Prompt: 1000, Completion: 500}}
	close(ch)
	return ch, nil
}

func (c *staticChat) Model() string { return c.model }

type staticClient struct{}

func (staticClient) NewChat(model string, _ *provider.GenerationConfig) (provider.Chat, error) {
	return &staticChat{model: model}, nil
}
func (staticClient) Supports(string) bool { return true }
func (staticClient) Close() error         { return nil }

func testManager(t *testing.T) *session.Manager {
	t.Helper()
	prices := pricing.Table{"gemini-2.5-flash": {Input: 0.30 / 1e6, Output: 2.50 / 1e6}}
	m := session.NewManager(staticClient{}, prices)
	if _, err := m.Create("alice", "gemini-2.5-flash", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Send(context.Background(), "alice", "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	return m
}

func TestHealth(t *testing.T) {
	t.Parallel()

	g := &Gateway{manager: testManager(t), metrics: metrics.New()}

	rr := httptest.NewRecorder()
	g.handleHealth().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Sessions != 1 {
		t.Errorf("sessions = %d, want 1", resp.Sessions)
	}
}

func TestHealth_NoManager(t *testing.T) {
	t.Parallel()

	g := &Gateway{metrics: metrics.New()}
	rr := httptest.NewRecorder()
	g.handleHealth().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.TurnCompleted("alice", "gemini-2.5-flash", 100*time.Millisecond, 1000, 500)

	g := &Gateway{
		manager:   testManager(t),
		metrics:   m,
		startedAt: time.Now().Add(-5 * time.Minute),
	}

	rr := httptest.NewRecorder()
	g.handleStatus().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.UptimeSeconds < 299 {
		t.Errorf("uptime = %d, expected >= 299", resp.UptimeSeconds)
	}
	if resp.Metrics.Turns != 1 {
		t.Errorf("turns = %d, want 1", resp.Metrics.Turns)
	}
	if len(resp.Sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(resp.Sessions))
	}
	s := resp.Sessions[0]
	if s.Name != "alice" || s.Model != "gemini-2.5-flash" {
		t.Errorf("session identity = %q/%q", s.Name, s.Model)
	}
	if s.InputTokens != 1000 || s.OutputTokens != 500 {
		t.Errorf("tokens = %d/%d, want 1000/500", s.InputTokens, s.OutputTokens)
	}
	// 1000 @ 0.30/1M + 500 @ 2.50/1M.
	if want := 0.00155; s.CostUSD < want-1e-9 || s.CostUSD > want+1e-9 {
		t.Errorf("cost = %v, want %v", s.CostUSD, want)
	}
	if resp.TotalCostUSD != s.CostUSD {
		t.Errorf("total cost = %v, want %v", resp.TotalCostUSD, s.CostUSD)
	}
}

func TestStatus_UnknownPricingReportsZeroCost(t *testing.T) {
	t.Parallel()

	mgr := session.NewManager(staticClient{}, pricing.Table{})
	if _, err := mgr.Create("bob", "mystery-model", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	g := &Gateway{manager: mgr, metrics: metrics.New(), startedAt: time.Now()}

	rr := httptest.NewRecorder()
	g.handleStatus().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sessions) != 1 || resp.Sessions[0].CostUSD != 0 {
		t.Errorf("unexpected sessions: %+v", resp.Sessions)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.TurnCompleted("alice", "gemini-2.5-flash", time.Second, 10, 5)

	g := &Gateway{manager: testManager(t), metrics: m, startedAt: time.Now()}

	rr := httptest.NewRecorder()
	g.buildRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "troupe_turns_total") {
		t.Error("scrape output missing troupe_turns_total")
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var c Config
	c.defaults()
	if c.Bind != "127.0.0.1:8080" {
		t.Errorf("Bind = %q", c.Bind)
	}
	if c.ReadTimeout != 10*time.Second || c.WriteTimeout != 30*time.Second {
		t.Errorf("timeouts = %v/%v", c.ReadTimeout, c.WriteTimeout)
	}
}
