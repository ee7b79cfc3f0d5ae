// Package remote talks to a remote AI agent over a websocket.
//
// Every frame is a JSON object. Requests carry a request_id that the agent
// echoes on every response frame, so several requests may be in flight on
// one connection. Inputs and response contents are externally tagged
// unions: exactly one key names the variant, e.g. {"Text": "hi"}.
package remote

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Instruction asks the agent to run a named command.
type Instruction struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
}

// ToolConfirmationResponse approves or rejects a ToolConfirmationRequest.
type ToolConfirmationResponse struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Approved  bool           `json:"approved"`
	Reason    string         `json:"reason,omitempty"`
}

// TurnConfirmationResponse answers a TurnConfirmationRequest.
type TurnConfirmationResponse struct {
	RequestID string `json:"requestId,omitempty"`
	Confirmed bool   `json:"confirmed"`
	Reason    string `json:"reason,omitempty"`
}

// Input is the request payload. Exactly one variant is set.
type Input struct {
	Text                     *string
	Instruction              *Instruction
	GetCommands              bool
	ToolConfirmationResponse *ToolConfirmationResponse
	TurnConfirmationResponse *TurnConfirmationResponse
}

// TextInput wraps plain text.
func TextInput(s string) Input { return Input{Text: &s} }

// InstructionInput wraps a command invocation.
func InstructionInput(command string, params map[string]any) Input {
	if params == nil {
		params = map[string]any{}
	}
	return Input{Instruction: &Instruction{Command: command, Parameters: params}}
}

// GetCommandsInput asks the agent for its command list.
func GetCommandsInput() Input { return Input{GetCommands: true} }

func (in Input) MarshalJSON() ([]byte, error) {
	switch {
	case in.Text != nil:
		return json.Marshal(map[string]string{"Text": *in.Text})
	case in.Instruction != nil:
		return json.Marshal(map[string]*Instruction{"Instruction": in.Instruction})
	case in.GetCommands:
		return []byte(`{"GetCommands":{}}`), nil
	case in.ToolConfirmationResponse != nil:
		return json.Marshal(map[string]*ToolConfirmationResponse{"ToolConfirmationResponse": in.ToolConfirmationResponse})
	case in.TurnConfirmationResponse != nil:
		return json.Marshal(map[string]*TurnConfirmationResponse{"TurnConfirmationResponse": in.TurnConfirmationResponse})
	default:
		return nil, errors.New("empty remote input")
	}
}

func (in *Input) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	*in = Input{}
	for tag, raw := range tagged {
		switch tag {
		case "Text":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return errors.Wrap(err, "Text input")
			}
			in.Text = &s
		case "Instruction":
			var ins Instruction
			if err := json.Unmarshal(raw, &ins); err != nil {
				return errors.Wrap(err, "Instruction input")
			}
			in.Instruction = &ins
		case "GetCommands":
			in.GetCommands = true
		case "ToolConfirmationResponse":
			in.ToolConfirmationResponse = &ToolConfirmationResponse{}
			if err := json.Unmarshal(raw, in.ToolConfirmationResponse); err != nil {
				return errors.Wrap(err, "ToolConfirmationResponse input")
			}
		case "TurnConfirmationResponse":
			in.TurnConfirmationResponse = &TurnConfirmationResponse{}
			if err := json.Unmarshal(raw, in.TurnConfirmationResponse); err != nil {
				return errors.Wrap(err, "TurnConfirmationResponse input")
			}
		default:
			return errors.Errorf("unsupported input type %q", tag)
		}
	}
	return nil
}

// RequestConfig tunes how the agent handles a request.
type RequestConfig struct {
	MaxToolTry             int    `json:"max_tool_try,omitempty"`
	MaxContextNum          int    `json:"max_context_num,omitempty"`
	MaxTokens              int    `json:"max_tokens,omitempty"`
	AskBeforeToolExecution *bool  `json:"ask_before_tool_execution,omitempty"`
	Prompt                 string `json:"prompt,omitempty"`
}

// Request is one frame sent to the agent.
type Request struct {
	RequestID string         `json:"request_id"`
	Input     Input          `json:"input"`
	Config    *RequestConfig `json:"config,omitempty"`
	Stream    bool           `json:"stream"`
	UseTools  bool           `json:"use_tools"`
}

// ContentKind names the variant held by a Content.
type ContentKind string

const (
	ContentText           ContentKind = "Text"
	ContentStream         ContentKind = "Stream"
	ContentStreamComplete ContentKind = "StreamComplete"
	ContentToolCall       ContentKind = "ToolCall"
	ContentToolResult     ContentKind = "ToolResult"
	ContentMulti          ContentKind = "Multi"

	ContentToolConfirmationRequest ContentKind = "ToolConfirmationRequest"
	ContentTurnConfirmationRequest ContentKind = "TurnConfirmationRequest"
)

// ToolCall asks the client to run a tool.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult answers a ToolCall.
type ToolResult struct {
	Name   string `json:"name"`
	Result any    `json:"result"`
}

// ToolConfirmationRequest asks the user to approve a tool before the agent
// runs it.
type ToolConfirmationRequest struct {
	Name        string         `json:"name"`
	Arguments   map[string]any `json:"arguments"`
	Description string         `json:"description,omitempty"`
}

// TurnConfirmationRequest asks the user to confirm starting a new turn.
type TurnConfirmationRequest struct {
	RequestID   string `json:"requestId,omitempty"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

// StreamComplete ends a streamed response.
type StreamComplete struct {
	TokenUsage  *TokenUsage `json:"token_usage,omitempty"`
	Interrupted bool        `json:"interrupted"`
}

// Content is a response payload. Kind says which field is valid.
type Content struct {
	Kind           ContentKind
	Text           string
	Stream         []string
	StreamComplete *StreamComplete
	ToolCall       *ToolCall
	ToolResult     *ToolResult
	Multi          []Content

	ToolConfirmation *ToolConfirmationRequest
	TurnConfirmation *TurnConfirmationRequest
}

func (c Content) MarshalJSON() ([]byte, error) {
	var v any
	switch c.Kind {
	case ContentText:
		v = c.Text
	case ContentStream:
		v = c.Stream
	case ContentStreamComplete:
		v = c.StreamComplete
	case ContentToolCall:
		v = c.ToolCall
	case ContentToolResult:
		v = c.ToolResult
	case ContentMulti:
		v = c.Multi
	case ContentToolConfirmationRequest:
		v = c.ToolConfirmation
	case ContentTurnConfirmationRequest:
		v = c.TurnConfirmation
	default:
		return nil, errors.Errorf("unknown content kind %q", c.Kind)
	}
	return json.Marshal(map[ContentKind]any{c.Kind: v})
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return errors.Errorf("response content must have exactly one variant, got %d", len(tagged))
	}
	*c = Content{}
	for tag, raw := range tagged {
		c.Kind = ContentKind(tag)
		var err error
		switch c.Kind {
		case ContentText:
			err = json.Unmarshal(raw, &c.Text)
		case ContentStream:
			err = json.Unmarshal(raw, &c.Stream)
		case ContentStreamComplete:
			c.StreamComplete = &StreamComplete{}
			err = json.Unmarshal(raw, c.StreamComplete)
		case ContentToolCall:
			c.ToolCall = &ToolCall{}
			err = json.Unmarshal(raw, c.ToolCall)
		case ContentToolResult:
			c.ToolResult = &ToolResult{}
			err = json.Unmarshal(raw, c.ToolResult)
		case ContentMulti:
			err = json.Unmarshal(raw, &c.Multi)
		case ContentToolConfirmationRequest:
			c.ToolConfirmation = &ToolConfirmationRequest{}
			err = json.Unmarshal(raw, c.ToolConfirmation)
		case ContentTurnConfirmationRequest:
			c.TurnConfirmation = &TurnConfirmationRequest{}
			err = json.Unmarshal(raw, c.TurnConfirmation)
		default:
			return errors.Errorf("unsupported response content %q", tag)
		}
		if err != nil {
			return errors.Wrapf(err, "%s content", tag)
		}
	}
	return nil
}

// TokenUsage reports model token counts.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is one frame received from the agent.
type Response struct {
	RequestID  string      `json:"request_id"`
	Response   Content     `json:"response"`
	Error      string      `json:"error,omitempty"`
	TokenUsage *TokenUsage `json:"token_usage,omitempty"`
}

// ParameterSpec describes one command parameter.
type ParameterSpec struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

// CommandDefinition describes a command the agent can run.
type CommandDefinition struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  map[string]ParameterSpec `json:"parameters"`
}

// CommandList is the JSON carried in the Text reply to GetCommands.
type CommandList struct {
	Commands  []CommandDefinition `json:"commands"`
	Timestamp int64               `json:"timestamp"`
}
