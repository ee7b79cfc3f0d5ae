package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInput_WireShape(t *testing.T) {
	data, err := json.Marshal(TextInput("hi"))
	require.NoError(t, err)
	require.JSONEq(t, `{"Text":"hi"}`, string(data))

	data, err = json.Marshal(InstructionInput("read_file", nil))
	require.NoError(t, err)
	require.JSONEq(t, `{"Instruction":{"command":"read_file","parameters":{}}}`, string(data))

	data, err = json.Marshal(GetCommandsInput())
	require.NoError(t, err)
	require.JSONEq(t, `{"GetCommands":{}}`, string(data))

	_, err = json.Marshal(Input{})
	require.Error(t, err)
}

func TestInput_Unmarshal(t *testing.T) {
	var in Input
	require.NoError(t, json.Unmarshal([]byte(`{"Instruction":{"command":"x","parameters":{"n":1}}}`), &in))
	require.NotNil(t, in.Instruction)
	require.Equal(t, "x", in.Instruction.Command)
	require.EqualValues(t, 1, in.Instruction.Parameters["n"])

	require.Error(t, json.Unmarshal([]byte(`{"Shell":"rm -rf /"}`), &in))
}

func TestInput_ConfirmationResponses(t *testing.T) {
	data, err := json.Marshal(Input{ToolConfirmationResponse: &ToolConfirmationResponse{
		Name:      "execute_command",
		Arguments: map[string]any{"command": "npm run build"},
		Approved:  false,
		Reason:    "not now",
	}})
	require.NoError(t, err)
	require.JSONEq(t, `{"ToolConfirmationResponse":{"name":"execute_command","arguments":{"command":"npm run build"},"approved":false,"reason":"not now"}}`, string(data))

	data, err = json.Marshal(Input{TurnConfirmationResponse: &TurnConfirmationResponse{RequestID: "turn_1", Confirmed: true}})
	require.NoError(t, err)
	require.JSONEq(t, `{"TurnConfirmationResponse":{"requestId":"turn_1","confirmed":true}}`, string(data))

	var in Input
	require.NoError(t, json.Unmarshal(data, &in))
	require.NotNil(t, in.TurnConfirmationResponse)
	require.True(t, in.TurnConfirmationResponse.Confirmed)
}

func TestRequest_WireShape(t *testing.T) {
	data, err := json.Marshal(Request{RequestID: "req_1", Input: TextInput("hi"), Stream: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"request_id":"req_1","input":{"Text":"hi"},"stream":true,"use_tools":false}`, string(data))
}

func TestResponse_Unmarshal(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		check func(t *testing.T, r Response)
	}{
		{
			name:  "text with null error",
			frame: `{"request_id":"a","response":{"Text":"ok"},"error":null}`,
			check: func(t *testing.T, r Response) {
				require.Equal(t, ContentText, r.Response.Kind)
				require.Equal(t, "ok", r.Response.Text)
				require.Empty(t, r.Error)
			},
		},
		{
			name:  "stream",
			frame: `{"request_id":"a","response":{"Stream":["x","y"]}}`,
			check: func(t *testing.T, r Response) {
				require.Equal(t, []string{"x", "y"}, r.Response.Stream)
			},
		},
		{
			name:  "stream complete",
			frame: `{"request_id":"a","response":{"StreamComplete":{"token_usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3},"interrupted":true}}}`,
			check: func(t *testing.T, r Response) {
				require.Equal(t, ContentStreamComplete, r.Response.Kind)
				require.True(t, r.Response.StreamComplete.Interrupted)
				require.Equal(t, 3, r.Response.StreamComplete.TokenUsage.TotalTokens)
			},
		},
		{
			name:  "tool call",
			frame: `{"request_id":"a","response":{"ToolCall":{"name":"ls","arguments":{"path":"."}}}}`,
			check: func(t *testing.T, r Response) {
				require.Equal(t, "ls", r.Response.ToolCall.Name)
				require.Equal(t, ".", r.Response.ToolCall.Arguments["path"])
			},
		},
		{
			name:  "tool confirmation request",
			frame: `{"request_id":"a","response":{"ToolConfirmationRequest":{"name":"execute_command","arguments":{"command":"npm run build","requires_approval":true},"description":"build the project"}},"error":null,"token_usage":null}`,
			check: func(t *testing.T, r Response) {
				require.Equal(t, ContentToolConfirmationRequest, r.Response.Kind)
				require.Equal(t, "execute_command", r.Response.ToolConfirmation.Name)
				require.Equal(t, "build the project", r.Response.ToolConfirmation.Description)
				require.Nil(t, r.TokenUsage)
			},
		},
		{
			name:  "turn confirmation request",
			frame: `{"request_id":"a","response":{"TurnConfirmationRequest":{"requestId":"turn_1","message":"Reset?","description":"clears context"}}}`,
			check: func(t *testing.T, r Response) {
				require.Equal(t, ContentTurnConfirmationRequest, r.Response.Kind)
				require.Equal(t, "turn_1", r.Response.TurnConfirmation.RequestID)
				require.Equal(t, "Reset?", r.Response.TurnConfirmation.Message)
			},
		},
		{
			name:  "multi",
			frame: `{"request_id":"a","response":{"Multi":[{"Text":"a"},{"Stream":["b"]}]}}`,
			check: func(t *testing.T, r Response) {
				require.Len(t, r.Response.Multi, 2)
				require.Equal(t, ContentStream, r.Response.Multi[1].Kind)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var r Response
			require.NoError(t, json.Unmarshal([]byte(tc.frame), &r))
			require.Equal(t, "a", r.RequestID)
			tc.check(t, r)
		})
	}
}

func TestContent_RejectsAmbiguousOrUnknown(t *testing.T) {
	var c Content
	require.Error(t, json.Unmarshal([]byte(`{"Text":"a","Stream":["b"]}`), &c))
	require.Error(t, json.Unmarshal([]byte(`{}`), &c))
	require.Error(t, json.Unmarshal([]byte(`{"Image":"abc"}`), &c))
}

func TestContent_MarshalToolResult(t *testing.T) {
	data, err := json.Marshal(Content{Kind: ContentToolResult, ToolResult: &ToolResult{Name: "ls", Result: []string{"a"}}})
	require.NoError(t, err)
	require.JSONEq(t, `{"ToolResult":{"name":"ls","result":["a"]}}`, string(data))
}
