// Package bridge is the command boundary between the front end and the
// backend. Commands are invoked by name with JSON arguments and answer
// with a JSON result or a flat error string, the way a desktop shell
// invokes its backend commands.
package bridge

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/DachengChen/aibridge/ai"
	"github.com/pkg/errors"
)

// SendMessageToAICommand forwards one message to the AI endpoint.
const SendMessageToAICommand = "send_message_to_ai"

// Handler runs one command.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// CommandError is what the front end sees when a command fails: just text.
// Kind is kept for callers that want to label the failure.
type CommandError struct {
	Message string
	Kind    ai.Kind
}

func (e *CommandError) Error() string { return e.Message }

// SendMessageArgs are the arguments of send_message_to_ai.
type SendMessageArgs struct {
	Message string `json:"message"`
	APIURL  string `json:"api_url"`
}

// Bridge holds the registered commands.
type Bridge struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates a bridge with send_message_to_ai bound to relay.
func New(relay *ai.Relay) *Bridge {
	b := &Bridge{handlers: map[string]Handler{}}
	b.Register(SendMessageToAICommand, sendMessageHandler(relay))
	return b
}

// Register adds or replaces a command.
func (b *Bridge) Register(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = h
}

// Commands lists registered command names in order.
func (b *Bridge) Commands() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs a command and returns its JSON-encoded result.
// Every failure comes back as a *CommandError.
func (b *Bridge) Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	b.mu.RLock()
	h, ok := b.handlers[name]
	b.mu.RUnlock()
	if !ok {
		return nil, &CommandError{Message: "unknown command: " + name}
	}

	result, err := h(ctx, args)
	if err != nil {
		return nil, toCommandError(err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		return nil, &CommandError{Message: errors.Wrap(err, "encode result").Error()}
	}
	return out, nil
}

// SendMessage is the typed shortcut for send_message_to_ai.
func (b *Bridge) SendMessage(ctx context.Context, message, apiURL string) (*ai.Response, error) {
	args, err := json.Marshal(SendMessageArgs{Message: message, APIURL: apiURL})
	if err != nil {
		return nil, &CommandError{Message: errors.Wrap(err, "encode arguments").Error()}
	}
	raw, err := b.Invoke(ctx, SendMessageToAICommand, args)
	if err != nil {
		return nil, err
	}
	var resp ai.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &CommandError{Message: errors.Wrap(err, "decode result").Error()}
	}
	return &resp, nil
}

func sendMessageHandler(relay *ai.Relay) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args SendMessageArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Wrap(err, "invalid arguments")
		}
		return relay.Send(ctx, args.Message, args.APIURL)
	}
}

func toCommandError(err error) *CommandError {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce
	}
	return &CommandError{Message: err.Error(), Kind: ai.KindOf(err)}
}
