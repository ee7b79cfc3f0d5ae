package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/DachengChen/aibridge/remote"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// ErrUnsupportedInput is the error code for inputs the agent cannot read.
	ErrUnsupportedInput = "unsupported_input_type"
	// ErrInternal is the error code for frames that are not valid JSON.
	ErrInternal = "internal_error"
	// ErrToolTimeout is sent when a tool result never arrives.
	ErrToolTimeout = "tool_timeout"
	// ErrConfirmationTimeout is sent when a confirmation never arrives.
	ErrConfirmationTimeout = "confirmation_timeout"

	// ToolPrefix marks a Text input (with use_tools) as a tool request:
	// "/tool NAME ARG" makes the agent issue a ToolCall for NAME.
	ToolPrefix = "/tool "

	// ResetText makes the agent ask for a TurnConfirmation before it
	// resets the conversation.
	ResetText = "/reset"

	// StreamCommand is the instruction that streams its "message" parameter.
	StreamCommand = "test_stream"

	streamChunks = 5
)

// AgentOptions configures the stub remote agent.
type AgentOptions struct {
	// ChunkDelay is the pause between streamed chunks.
	ChunkDelay time.Duration
	// ToolTimeout bounds the wait for a ToolResult or a confirmation.
	ToolTimeout time.Duration
	// Commands is returned for GetCommands; DefaultCommands when nil.
	Commands []remote.CommandDefinition
	Logger   zerolog.Logger
}

// DefaultCommands is the command list the stub agent advertises.
func DefaultCommands() []remote.CommandDefinition {
	return []remote.CommandDefinition{
		{
			Name:        "run_code",
			Description: "Run a code snippet",
			Parameters: map[string]remote.ParameterSpec{
				"language": {Type: "string", Description: "Programming language", Required: true},
				"code":     {Type: "string", Description: "Code to run", Required: true},
			},
		},
		{
			Name:        "read_file",
			Description: "Read a file",
			Parameters: map[string]remote.ParameterSpec{
				"path": {Type: "string", Description: "File path", Required: true},
			},
		},
		{
			Name:        "list_files",
			Description: "List files in a directory",
			Parameters: map[string]remote.ParameterSpec{
				"path": {Type: "string", Description: "Directory path"},
			},
		},
		{
			Name:        "get_system_info",
			Description: "Report system information",
			Parameters:  map[string]remote.ParameterSpec{},
		},
		{
			Name:        StreamCommand,
			Description: "Stream a message back in chunks",
			Parameters: map[string]remote.ParameterSpec{
				"message": {Type: "string", Description: "Message to stream", Required: true},
			},
		},
	}
}

type agentHandler struct {
	opts     AgentOptions
	upgrader websocket.Upgrader
}

// NewAgentHandler returns a websocket handler speaking the remote agent
// protocol: Text is echoed (or streamed when stream is set), Instructions
// are acknowledged, GetCommands returns the command list. Tool calls and
// the /reset text ask the client for confirmation first.
func NewAgentHandler(opts AgentOptions) http.Handler {
	if opts.Commands == nil {
		opts.Commands = DefaultCommands()
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = remote.DefaultTimeout
	}
	return &agentHandler{
		opts:     opts,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (h *agentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s := &agentSession{
		opts:  h.opts,
		conn:  conn,
		waits: map[string]chan agentFrame{},
	}
	s.run()
}

// agentFrame is a request (input set) or a tool result (response set).
// Confirmation responses arrive as requests reusing the waiting request id.
type agentFrame struct {
	RequestID string                `json:"request_id"`
	Input     json.RawMessage       `json:"input"`
	Response  *remote.Content       `json:"response"`
	Config    *remote.RequestConfig `json:"config"`
	Stream    bool                  `json:"stream"`
	UseTools  bool                  `json:"use_tools"`
}

// answer reports whether f answers a question the agent asked.
func (f agentFrame) answer() bool {
	if f.Response != nil {
		return true
	}
	var in remote.Input
	if json.Unmarshal(f.Input, &in) != nil {
		return false
	}
	return in.ToolConfirmationResponse != nil || in.TurnConfirmationResponse != nil
}

type agentSession struct {
	opts AgentOptions
	conn *websocket.Conn

	writeMu sync.Mutex

	mu    sync.Mutex
	waits map[string]chan agentFrame
}

func (s *agentSession) run() {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		_ = s.conn.Close()
	}()

	s.opts.Logger.Info().Str("remote", s.conn.RemoteAddr().String()).Msg("stub agent client connected")
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.opts.Logger.Info().Msg("stub agent client disconnected")
			return
		}
		var f agentFrame
		if err := json.Unmarshal(data, &f); err != nil {
			s.reply("unknown", remote.Content{Kind: remote.ContentText, Text: "internal server error"}, ErrInternal)
			continue
		}
		if f.answer() {
			s.deliver(f)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, f)
		}()
	}
}

func (s *agentSession) handle(ctx context.Context, f agentFrame) {
	var in remote.Input
	if len(f.Input) == 0 || json.Unmarshal(f.Input, &in) != nil ||
		(in.Text == nil && in.Instruction == nil && !in.GetCommands) {
		s.reply(f.RequestID, remote.Content{Kind: remote.ContentText, Text: "unknown input type"}, ErrUnsupportedInput)
		return
	}

	switch {
	case in.GetCommands:
		list, err := json.Marshal(remote.CommandList{
			Commands:  s.opts.Commands,
			Timestamp: time.Now().UnixMilli(),
		})
		if err != nil {
			s.reply(f.RequestID, remote.Content{Kind: remote.ContentText, Text: err.Error()}, ErrInternal)
			return
		}
		s.reply(f.RequestID, remote.Content{Kind: remote.ContentText, Text: string(list)}, "")

	case in.Text != nil:
		text := *in.Text
		if f.UseTools && strings.HasPrefix(text, ToolPrefix) {
			s.callTool(ctx, f, strings.TrimPrefix(text, ToolPrefix))
			return
		}
		if strings.TrimSpace(text) == ResetText {
			s.confirmReset(ctx, f.RequestID)
			return
		}
		if f.Stream {
			s.stream(ctx, f.RequestID, text, 10)
			return
		}
		s.reply(f.RequestID, remote.Content{Kind: remote.ContentText, Text: `received: "` + text + `"`}, "")

	case in.Instruction != nil:
		ins := in.Instruction
		if ins.Command == StreamCommand {
			msg, _ := ins.Parameters["message"].(string)
			if msg == "" {
				msg = "this is a streamed test reply"
			}
			s.stream(ctx, f.RequestID, msg, 15)
			return
		}
		params, _ := json.Marshal(ins.Parameters)
		s.reply(f.RequestID, remote.Content{
			Kind: remote.ContentText,
			Text: fmt.Sprintf("executed %s with %s", ins.Command, params),
		}, "")
	}
}

func (s *agentSession) stream(ctx context.Context, requestID, text string, promptTokens int) {
	for _, chunk := range splitChunks(text, streamChunks) {
		s.reply(requestID, remote.Content{Kind: remote.ContentStream, Stream: []string{chunk}}, "")
		if s.opts.ChunkDelay > 0 {
			select {
			case <-time.After(s.opts.ChunkDelay):
			case <-ctx.Done():
				return
			}
		}
	}
	n := len([]rune(text))
	s.reply(requestID, remote.Content{
		Kind: remote.ContentStreamComplete,
		StreamComplete: &remote.StreamComplete{
			TokenUsage: &remote.TokenUsage{
				PromptTokens:     promptTokens,
				CompletionTokens: n,
				TotalTokens:      promptTokens + n,
			},
		},
	}, "")
}

func (s *agentSession) callTool(ctx context.Context, f agentFrame, line string) {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	args := map[string]any{"input": arg}
	ch := s.expect(f.RequestID)
	defer s.forget(f.RequestID)

	if f.Config != nil && f.Config.AskBeforeToolExecution != nil && *f.Config.AskBeforeToolExecution {
		s.reply(f.RequestID, remote.Content{
			Kind: remote.ContentToolConfirmationRequest,
			ToolConfirmation: &remote.ToolConfirmationRequest{
				Name:        name,
				Arguments:   args,
				Description: "run tool " + name,
			},
		}, "")
		answer, ok := s.await(ctx, f.RequestID, ch, "tool confirmation", ErrConfirmationTimeout)
		if !ok {
			return
		}
		c := decodeInput(answer).ToolConfirmationResponse
		if c == nil || !c.Approved {
			reason := "no confirmation"
			if c != nil && c.Reason != "" {
				reason = c.Reason
			}
			s.reply(f.RequestID, remote.Content{
				Kind: remote.ContentText,
				Text: fmt.Sprintf("tool %s rejected: %s", name, reason),
			}, "")
			return
		}
	}

	s.reply(f.RequestID, remote.Content{
		Kind:     remote.ContentToolCall,
		ToolCall: &remote.ToolCall{Name: name, Arguments: args},
	}, "")
	answer, ok := s.await(ctx, f.RequestID, ch, "tool result", ErrToolTimeout)
	if !ok {
		return
	}
	if answer.Response == nil || answer.Response.ToolResult == nil {
		s.reply(f.RequestID, remote.Content{Kind: remote.ContentText, Text: "expected a tool result"}, ErrUnsupportedInput)
		return
	}
	out, _ := json.Marshal(answer.Response.ToolResult.Result)
	s.reply(f.RequestID, remote.Content{
		Kind: remote.ContentText,
		Text: fmt.Sprintf("tool %s returned %s", name, out),
	}, "")
}

func (s *agentSession) confirmReset(ctx context.Context, requestID string) {
	ch := s.expect(requestID)
	defer s.forget(requestID)

	s.reply(requestID, remote.Content{
		Kind: remote.ContentTurnConfirmationRequest,
		TurnConfirmation: &remote.TurnConfirmationRequest{
			RequestID:   requestID,
			Message:     "Reset the conversation?",
			Description: "Clears the agent context and starts a new turn",
		},
	}, "")
	answer, ok := s.await(ctx, requestID, ch, "turn confirmation", ErrConfirmationTimeout)
	if !ok {
		return
	}
	text := "conversation kept"
	if c := decodeInput(answer).TurnConfirmationResponse; c != nil && c.Confirmed {
		text = "conversation reset"
	} else if c != nil && c.Reason != "" {
		text += ": " + c.Reason
	}
	s.reply(requestID, remote.Content{Kind: remote.ContentText, Text: text}, "")
}

func decodeInput(f agentFrame) remote.Input {
	var in remote.Input
	_ = json.Unmarshal(f.Input, &in)
	return in
}

func (s *agentSession) expect(requestID string) chan agentFrame {
	ch := make(chan agentFrame, 1)
	s.mu.Lock()
	s.waits[requestID] = ch
	s.mu.Unlock()
	return ch
}

func (s *agentSession) forget(requestID string) {
	s.mu.Lock()
	delete(s.waits, requestID)
	s.mu.Unlock()
}

// await waits for the client's answer; on timeout it fails the request
// with code.
func (s *agentSession) await(ctx context.Context, requestID string, ch chan agentFrame, what, code string) (agentFrame, bool) {
	timer := time.NewTimer(s.opts.ToolTimeout)
	defer timer.Stop()
	select {
	case f := <-ch:
		return f, true
	case <-timer.C:
		s.reply(requestID, remote.Content{Kind: remote.ContentText, Text: what + " not received"}, code)
	case <-ctx.Done():
	}
	return agentFrame{}, false
}

func (s *agentSession) deliver(f agentFrame) {
	s.mu.Lock()
	ch, ok := s.waits[f.RequestID]
	s.mu.Unlock()
	if !ok {
		s.opts.Logger.Warn().Str("request_id", f.RequestID).Msg("answer for unknown request")
		return
	}
	select {
	case ch <- f:
	default:
	}
}

func (s *agentSession) reply(requestID string, content remote.Content, errCode string) {
	data, err := json.Marshal(remote.Response{RequestID: requestID, Response: content, Error: errCode})
	if err != nil {
		s.opts.Logger.Error().Err(err).Msg("stub agent encode failed")
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.opts.Logger.Debug().Err(err).Msg("stub agent write failed")
	}
}

// splitChunks cuts text into at most n rune-aligned pieces.
func splitChunks(text string, n int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	size := (len(runes) + n - 1) / n
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
