// Package stub serves development stand-ins for the AI endpoint and the
// remote agent so the relay, the TUI and the remote client can be driven
// without a real model behind them.
package stub

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/DachengChen/aibridge/ai"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RelayOptions configures the stub AI endpoint.
type RelayOptions struct {
	// Prefix is prepended to the echoed message.
	Prefix string
	// Latency simulates a slow model before each reply.
	Latency time.Duration
	// RatePerSecond enables a token bucket; excess requests get 429.
	RatePerSecond float64
	Burst         int
	Logger        zerolog.Logger
}

type relayHandler struct {
	opts    RelayOptions
	limiter *rate.Limiter
}

// NewRelayHandler returns a handler that answers POSTed {"message": m}
// with {"reply": Prefix + m}.
func NewRelayHandler(opts RelayOptions) http.Handler {
	h := &relayHandler{opts: opts}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return h
}

func (h *relayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.limiter != nil && !h.limiter.Allow() {
		h.opts.Logger.Warn().Str("remote", r.RemoteAddr).Msg("stub relay rate limited")
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	var req ai.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	if h.opts.Latency > 0 {
		select {
		case <-time.After(h.opts.Latency):
		case <-r.Context().Done():
			return
		}
	}

	h.opts.Logger.Debug().Int("message_len", len(req.Message)).Msg("stub relay reply")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ai.Response{Reply: h.opts.Prefix + req.Message})
}
