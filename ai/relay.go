// Package ai forwards user messages to a remote AI HTTP endpoint.
//
// Design decisions:
//   - The relay is stateless: every Send builds its own request and
//     shares nothing with concurrent calls. An *http.Client may be
//     injected for pooling or tunnelling; the zero value uses
//     http.DefaultClient.
//   - No retry and no deadline. The only cancellation is the caller's ctx.
//   - Failures carry a Kind (transport, status, parse) but keep a flat,
//     human-readable Error() text for callers that only show strings.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Request is the body POSTed to the AI endpoint.
type Request struct {
	Message string `json:"message"`
}

// Response is the body expected back from the AI endpoint.
type Response struct {
	Reply string `json:"reply"`
}

// wireResponse detects a missing or null "reply" field, which
// encoding/json would otherwise accept silently.
type wireResponse struct {
	Reply *string `json:"reply"`
}

// Relay sends one message per call to a caller-supplied URL.
type Relay struct {
	client *http.Client
	logger zerolog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient injects a reusable HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) {
		if c != nil {
			r.client = c
		}
	}
}

// WithLogger sets the logger used for per-call debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Relay) {
		r.logger = l
	}
}

// NewRelay creates a relay. Without options it uses http.DefaultClient
// and logs nothing.
func NewRelay(opts ...Option) *Relay {
	r := &Relay{
		client: http.DefaultClient,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send posts message to apiURL and returns the parsed reply.
// Neither argument is validated; a malformed URL fails as a transport error.
func (r *Relay) Send(ctx context.Context, message string, apiURL string) (*Response, error) {
	start := time.Now()
	LogRelayRequest(apiURL, message)

	resp, err := r.send(ctx, message, apiURL)

	LogRelayResponse(apiURL, resp, err, time.Since(start))
	ev := r.logger.Debug().Str("url", apiURL).Dur("took", time.Since(start))
	if err != nil {
		ev = ev.Str("kind", KindOf(err).String()).Err(err)
	}
	ev.Msg("relay call finished")

	return resp, err
}

func (r *Relay) send(ctx context.Context, message string, apiURL string) (*Response, error) {
	payload, err := json.Marshal(Request{Message: message})
	if err != nil {
		return nil, &RelayError{Kind: KindTransport, Err: errors.Wrap(err, "encode request")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &RelayError{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpResp, err := r.client.Do(req)
	if err != nil {
		return nil, &RelayError{Kind: KindTransport, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		// Drain so the connection can go back to the pool.
		_, _ = io.Copy(io.Discard, httpResp.Body)
		return nil, &RelayError{
			Kind:       KindStatus,
			StatusCode: httpResp.StatusCode,
			Reason:     reasonPhrase(httpResp),
		}
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &RelayError{Kind: KindParse, Err: errors.Wrap(err, "read body")}
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &RelayError{Kind: KindParse, Err: err}
	}
	if wire.Reply == nil {
		return nil, &RelayError{Kind: KindParse, Err: errors.New(`missing field "reply"`)}
	}

	return &Response{Reply: *wire.Reply}, nil
}

// reasonPhrase returns "Not Found" for a "404 Not Found" status line,
// falling back to the standard text when the server sent a bare code.
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}
