package remote

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Status is the connection state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusError:
		return "error"
	default:
		return "disconnected"
	}
}

const (
	// DefaultTimeout bounds connecting and each request.
	DefaultTimeout = 30 * time.Second
	// DefaultReconnectAttempts and DefaultReconnectDelay are the
	// application's reconnect settings; a zero Config never reconnects.
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = 3 * time.Second
)

var (
	// ErrNotConnected is returned when sending without a connection.
	ErrNotConnected = errors.New("not connected to remote agent")
	// ErrClosed fails requests still pending when the connection ends.
	ErrClosed = errors.New("remote connection closed")
	// ErrTimeout is returned when the agent does not answer in time.
	ErrTimeout = errors.New("remote request timed out")
)

// AgentError is returned when the agent answers with an error field.
type AgentError struct {
	RequestID string
	Code      string
}

func (e *AgentError) Error() string {
	return "remote agent error: " + e.Code
}

// StreamHandler receives streamed chunks of one request.
type StreamHandler struct {
	OnChunk    func(chunk string)
	OnComplete func(full string)
}

// ToolCallHandler runs a tool the agent asked for; its result is sent back.
type ToolCallHandler func(ctx context.Context, call ToolCall) (any, error)

// Confirmation is a tool or turn the agent wants approved. Exactly one of
// Tool and Turn is set.
type Confirmation struct {
	RequestID string
	Tool      *ToolConfirmationRequest
	Turn      *TurnConfirmationRequest
}

// Decision answers a Confirmation.
type Decision struct {
	Approved bool
	Reason   string
}

// ConfirmationHandler decides a Confirmation, typically by asking the user.
// It may block until the user answers or ctx ends.
type ConfirmationHandler func(ctx context.Context, c Confirmation) (Decision, error)

// noHandlerReason rejects confirmations when Config.Confirm is nil.
const noHandlerReason = "confirmation not supported by this client"

// Config configures a Client.
type Config struct {
	// Addr is host:port of the agent.
	Addr    string
	Timeout time.Duration
	// Dial, when set, replaces the network dialer (e.g. an SSH bastion).
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
	// ToolCall handles ToolCall frames; without it they complete the request.
	ToolCall ToolCallHandler
	// Confirm answers tool and turn confirmation requests; without it
	// they are rejected.
	Confirm ConfirmationHandler
	// ReconnectAttempts redials this many times after the connection drops
	// unexpectedly, waiting ReconnectDelay before each attempt.
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	// OnStatus is called after every status change. It must not block.
	OnStatus func(Status)
	// OnUnsolicited receives frames that match no pending request.
	OnUnsolicited func(Response)
	Logger        zerolog.Logger
}

type result struct {
	resp *Response
	err  error
}

type pendingRequest struct {
	done   chan result
	stream bool
	sh     *StreamHandler
	chunks []string
}

// resolve delivers the first outcome only; a late frame racing with
// Close must not block the read loop.
func (p *pendingRequest) resolve(r result) {
	select {
	case p.done <- r:
	default:
	}
}

// Client is a websocket remote-agent client. Safe for concurrent use.
type Client struct {
	cfg Config

	mu      sync.Mutex
	conn    *websocket.Conn
	status  Status
	pending map[string]*pendingRequest
	stop    chan struct{} // closed by Close to end a reconnect loop

	writeMu sync.Mutex
}

// NewClient creates a disconnected client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ReconnectAttempts > 0 && cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Client{
		cfg:     cfg,
		pending: map[string]*pendingRequest{},
	}
}

// Status reports the connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect dials the agent. Connecting twice, or while a reconnect is
// under way, is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.status {
	case StatusConnected, StatusConnecting, StatusReconnecting:
		c.mu.Unlock()
		return nil
	}
	c.status = StatusConnecting
	c.mu.Unlock()
	c.notify(StatusConnecting)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setStatus(StatusError)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.status = StatusConnected
	c.mu.Unlock()
	c.notify(StatusConnected)

	c.cfg.Logger.Info().Str("addr", c.cfg.Addr).Msg("remote agent connected")
	go c.readLoop(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.Timeout,
		NetDialContext:   c.cfg.Dial,
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := "ws://" + c.cfg.Addr
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", url)
	}
	return conn, nil
}

// Close disconnects, stops any reconnect attempts and fails every pending
// request with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	changed := c.status != StatusDisconnected
	c.status = StatusDisconnected
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.mu.Unlock()
	if changed {
		c.notify(StatusDisconnected)
	}

	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := conn.Close()
	c.failPending(ErrClosed)
	return err
}

// SendText sends plain text. stream asks the agent to stream its answer;
// chunks go to sh when it is non-nil.
func (c *Client) SendText(ctx context.Context, text string, cfg *RequestConfig, stream, useTools bool, sh *StreamHandler) (*Response, error) {
	return c.Send(ctx, Request{
		Input:    TextInput(text),
		Config:   cfg,
		Stream:   stream,
		UseTools: useTools,
	}, sh)
}

// SendInstruction runs a named command on the agent.
func (c *Client) SendInstruction(ctx context.Context, command string, params map[string]any, cfg *RequestConfig) (*Response, error) {
	return c.Send(ctx, Request{
		Input:    InstructionInput(command, params),
		Config:   cfg,
		UseTools: true,
	}, nil)
}

// GetCommands fetches the agent's command list.
func (c *Client) GetCommands(ctx context.Context) ([]CommandDefinition, error) {
	resp, err := c.Send(ctx, Request{Input: GetCommandsInput()}, nil)
	if err != nil {
		return nil, err
	}
	if resp.Response.Kind != ContentText {
		return nil, errors.Errorf("unexpected %s reply to GetCommands", resp.Response.Kind)
	}
	var list CommandList
	if err := json.Unmarshal([]byte(resp.Response.Text), &list); err != nil {
		return nil, errors.Wrap(err, "parse command list")
	}
	return list.Commands, nil
}

// Send assigns a request id, writes req and waits for the final frame.
func (c *Client) Send(ctx context.Context, req Request, sh *StreamHandler) (*Response, error) {
	c.mu.Lock()
	conn := c.conn
	if c.status != StatusConnected || conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	req.RequestID = newRequestID()
	p := &pendingRequest{done: make(chan result, 1), stream: req.Stream, sh: sh}
	c.pending[req.RequestID] = p
	c.mu.Unlock()

	if err := c.write(conn, req); err != nil {
		c.dropPending(req.RequestID)
		return nil, err
	}

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	select {
	case r := <-p.done:
		return r.resp, r.err
	case <-timer.C:
		c.dropPending(req.RequestID)
		return nil, ErrTimeout
	case <-ctx.Done():
		c.dropPending(req.RequestID)
		return nil, ctx.Err()
	}
}

func (c *Client) write(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode remote frame")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "write remote frame")
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connLost(conn, err)
			return
		}
		c.dispatch(conn, data)
	}
}

// connLost handles a read failure on conn. Unless Close caused it, pending
// requests fail and, when configured, a reconnect loop starts.
func (c *Client) connLost(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// Close already failed the pending requests.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	var stop chan struct{}
	if c.cfg.ReconnectAttempts > 0 {
		stop = make(chan struct{})
		c.stop = stop
		c.status = StatusReconnecting
	} else {
		c.status = StatusDisconnected
	}
	status := c.status
	c.mu.Unlock()
	_ = conn.Close()

	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.cfg.Logger.Warn().Err(err).Msg("remote agent read failed")
	}
	c.failPending(ErrClosed)
	c.notify(status)
	if stop != nil {
		go c.reconnect(stop)
	}
}

// reconnect redials until it succeeds, the attempts run out or stop closes.
func (c *Client) reconnect(stop chan struct{}) {
	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		c.cfg.Logger.Warn().
			Int("attempt", attempt).
			Int("max", c.cfg.ReconnectAttempts).
			Str("addr", c.cfg.Addr).
			Msg("remote agent connection lost, reconnecting")

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-timer.C:
		case <-stop:
			timer.Stop()
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			c.cfg.Logger.Debug().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			continue
		}

		c.mu.Lock()
		if c.stop != stop {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.status = StatusConnected
		c.stop = nil
		c.mu.Unlock()

		c.cfg.Logger.Info().Str("addr", c.cfg.Addr).Int("attempt", attempt).Msg("remote agent reconnected")
		c.notify(StatusConnected)
		go c.readLoop(conn)
		return
	}

	c.mu.Lock()
	gaveUp := c.stop == stop
	if gaveUp {
		c.stop = nil
		c.status = StatusDisconnected
	}
	c.mu.Unlock()
	if gaveUp {
		c.cfg.Logger.Error().Str("addr", c.cfg.Addr).Msg("remote agent unreachable, giving up")
		c.notify(StatusDisconnected)
	}
}

func (c *Client) dispatch(conn *websocket.Conn, data []byte) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.cfg.Logger.Error().Err(err).Str("frame", string(data)).Msg("failed to parse remote frame")
		return
	}

	switch resp.Response.Kind {
	case ContentToolConfirmationRequest, ContentTurnConfirmationRequest:
		// Answered whether or not a request is waiting; the agent's
		// follow-up frame completes the request.
		go c.confirm(conn, resp)
		return
	}

	c.mu.Lock()
	p, ok := c.pending[resp.RequestID]
	c.mu.Unlock()
	if !ok {
		if c.cfg.OnUnsolicited != nil {
			c.cfg.OnUnsolicited(resp)
		}
		return
	}

	switch resp.Response.Kind {
	case ContentStream:
		if p.sh != nil && p.sh.OnChunk != nil {
			for _, chunk := range resp.Response.Stream {
				p.sh.OnChunk(chunk)
			}
		}
		p.chunks = append(p.chunks, resp.Response.Stream...)
		if p.stream && resp.Error == "" {
			// Wait for StreamComplete.
			return
		}
		c.finishStream(p, &resp)

	case ContentStreamComplete:
		if resp.TokenUsage == nil && resp.Response.StreamComplete != nil {
			resp.TokenUsage = resp.Response.StreamComplete.TokenUsage
		}
		c.finishStream(p, &resp)

	case ContentToolCall:
		if c.cfg.ToolCall == nil {
			c.complete(p, &resp)
			return
		}
		go c.runTool(conn, resp.RequestID, *resp.Response.ToolCall)

	default:
		c.complete(p, &resp)
	}
}

// finishStream folds the collected chunks into one Text response.
func (c *Client) finishStream(p *pendingRequest, resp *Response) {
	full := strings.Join(p.chunks, "")
	if p.sh != nil && p.sh.OnComplete != nil {
		p.sh.OnComplete(full)
	}
	c.complete(p, &Response{
		RequestID:  resp.RequestID,
		Response:   Content{Kind: ContentText, Text: full},
		Error:      resp.Error,
		TokenUsage: resp.TokenUsage,
	})
}

func (c *Client) complete(p *pendingRequest, resp *Response) {
	c.dropPending(resp.RequestID)
	var err error
	if resp.Error != "" {
		err = &AgentError{RequestID: resp.RequestID, Code: resp.Error}
	}
	p.resolve(result{resp: resp, err: err})
}

func (c *Client) runTool(conn *websocket.Conn, requestID string, call ToolCall) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	out, err := c.cfg.ToolCall(ctx, call)
	if err != nil {
		c.cfg.Logger.Error().Err(err).Str("tool", call.Name).Msg("tool call failed")
		out = map[string]any{"error": err.Error()}
	}
	reply := Response{
		RequestID: requestID,
		Response:  Content{Kind: ContentToolResult, ToolResult: &ToolResult{Name: call.Name, Result: out}},
	}
	if err := c.write(conn, reply); err != nil {
		c.cfg.Logger.Error().Err(err).Str("tool", call.Name).Msg("failed to send tool result")
	}
}

func (c *Client) confirm(conn *websocket.Conn, resp Response) {
	conf := Confirmation{
		RequestID: resp.RequestID,
		Tool:      resp.Response.ToolConfirmation,
		Turn:      resp.Response.TurnConfirmation,
	}
	d := Decision{Reason: noHandlerReason}
	if c.cfg.Confirm != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		var err error
		d, err = c.cfg.Confirm(ctx, conf)
		cancel()
		if err != nil {
			c.cfg.Logger.Warn().Err(err).Str("request_id", conf.RequestID).Msg("confirmation failed, rejecting")
			d = Decision{Reason: err.Error()}
		}
	}
	if err := c.write(conn, confirmationFrame(conf, d)); err != nil {
		c.cfg.Logger.Error().Err(err).Str("request_id", conf.RequestID).Msg("failed to send confirmation")
	}
}

// confirmationFrame builds the request answering conf.
func confirmationFrame(conf Confirmation, d Decision) Request {
	req := Request{RequestID: conf.RequestID}
	if conf.Tool != nil {
		req.Input.ToolConfirmationResponse = &ToolConfirmationResponse{
			Name:      conf.Tool.Name,
			Arguments: conf.Tool.Arguments,
			Approved:  d.Approved,
			Reason:    d.Reason,
		}
		return req
	}
	turn := &TurnConfirmationResponse{Confirmed: d.Approved, Reason: d.Reason}
	if conf.Turn != nil {
		turn.RequestID = conf.Turn.RequestID
	}
	req.Input.TurnConfirmationResponse = turn
	return req
}

func (c *Client) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = map[string]*pendingRequest{}
	c.mu.Unlock()

	for _, p := range pending {
		p.resolve(result{err: err})
	}
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	c.notify(s)
}

func (c *Client) notify(s Status) {
	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(s)
	}
}

func newRequestID() string {
	return "req_" + uuid.NewString()
}
