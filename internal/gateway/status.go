package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/troupelabs/troupe/internal/metrics"
	"github.com/troupelabs/troupe/internal/pricing"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Metrics       metrics.Snapshot `json:"metrics"`
	Sessions      []SessionStatus  `json:"sessions"`
	TotalCostUSD  float64          `json:"total_cost_usd"`
}

// SessionStatus is the per-session slice of the status report.
type SessionStatus struct {
	Name         string  `json:"name"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			UptimeSeconds: int64(time.Since(g.startedAt) / time.Second),
			Metrics:       g.metrics.Snapshot(),
			Sessions:      []SessionStatus{},
		}

		if g.manager != nil {
			for _, s := range g.manager.Sessions() {
				in, out := s.Usage()
				st := SessionStatus{
					Name:         s.Name(),
					Model:        s.Model(),
					InputTokens:  in,
					OutputTokens: out,
				}
				cost, err := g.manager.SessionCost(s.Name())
				switch {
				case err == nil:
					st.CostUSD = cost
					resp.TotalCostUSD += cost
				case errors.Is(err, pricing.ErrUnknownPricing):
					// Unknown models report zero cost rather than
					// failing the whole status page.
				}
				resp.Sessions = append(resp.Sessions, st)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
