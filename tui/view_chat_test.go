package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/DachengChen/aibridge/ai"
	"github.com/DachengChen/aibridge/bridge"
	"github.com/DachengChen/aibridge/config"
	"github.com/DachengChen/aibridge/history"
	"github.com/DachengChen/aibridge/stub"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestChat(t *testing.T, h http.Handler) (*ChatView, *history.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Relay.APIURL = srv.URL
	store := history.NewMemoryStore(50)
	v := NewChatView(bridge.New(ai.NewRelay()), store, cfg)
	v.render = func(s string) string { return s }
	v.SetSize(80, 30)
	return v, store
}

func typeText(v View, s string) View {
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return v
}

// press sends a key and runs the returned command, feeding its message back.
func press(t *testing.T, v View, key tea.KeyMsg) View {
	t.Helper()
	v, cmd := v.Update(key)
	if cmd != nil {
		v, _ = v.Update(cmd())
	}
	return v
}

func statusCodeHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	})
}

func TestChatView_SendRecordsExchange(t *testing.T) {
	v, store := newTestChat(t, stub.NewRelayHandler(stub.RelayOptions{Prefix: "re: "}))

	typeText(v, "hello")
	press(t, v, tea.KeyMsg{Type: tea.KeyEnter})

	require.False(t, v.loading)
	require.Empty(t, v.input)
	require.Len(t, v.entries, 2)
	require.Equal(t, history.RoleUser, v.entries[0].Role)
	require.Equal(t, history.StatusSent, v.entries[0].Status)
	require.NotZero(t, v.entries[0].ID)
	require.Equal(t, history.RoleAssistant, v.entries[1].Role)
	require.Equal(t, "re: hello", v.entries[1].Content)
	require.NoError(t, v.lastErr)

	stored, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, history.StatusSent, stored[0].Status)
	require.Equal(t, "re: hello", stored[1].Content)
}

func TestChatView_OneRequestInFlight(t *testing.T) {
	v, _ := newTestChat(t, stub.NewRelayHandler(stub.RelayOptions{}))

	typeText(v, "first")
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.True(t, v.loading)
	require.Equal(t, history.StatusSending, v.entries[0].Status)

	typeText(v, "second")
	_, second := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, second)
	require.Equal(t, "second", v.input)

	v.Update(cmd())
	require.False(t, v.loading)
}

func TestChatView_EmptyInputIsIgnored(t *testing.T) {
	v, _ := newTestChat(t, stub.NewRelayHandler(stub.RelayOptions{}))
	typeText(v, "   ")
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.Empty(t, v.entries)
}

func TestChatView_FailureAndRetryLimit(t *testing.T) {
	v, store := newTestChat(t, statusCodeHandler(http.StatusServiceUnavailable))

	typeText(v, "hi")
	press(t, v, tea.KeyMsg{Type: tea.KeyEnter})

	require.EqualError(t, v.lastErr, "api request failed: status code 503 Service Unavailable")
	require.Equal(t, errLabelServer, v.errLabel)
	require.Equal(t, history.StatusError, v.entries[0].Status)
	require.Equal(t, history.RoleError, v.entries[1].Role)
	require.True(t, v.canRetry())

	for i := 1; i <= maxRetries; i++ {
		press(t, v, tea.KeyMsg{Type: tea.KeyCtrlR})
		require.Equal(t, i, v.retries)
		require.Equal(t, history.StatusError, v.entries[0].Status)
	}
	require.False(t, v.canRetry())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.Nil(t, cmd)
	require.Equal(t, "retry not available", v.status)

	// One user entry, one error line per attempt.
	stored, err := store.Recent(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, stored, 1+1+maxRetries)
}

func TestChatView_RetrySucceedsAndResets(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	v, _ := newTestChat(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		stub.NewRelayHandler(stub.RelayOptions{Prefix: "ok "}).ServeHTTP(w, r)
	}))

	typeText(v, "again")
	press(t, v, tea.KeyMsg{Type: tea.KeyEnter})
	require.Error(t, v.lastErr)

	fail.Store(false)
	press(t, v, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NoError(t, v.lastErr)
	require.Zero(t, v.retries)
	require.Equal(t, history.StatusSent, v.entries[0].Status)
	require.Equal(t, "ok again", v.entries[len(v.entries)-1].Content)
}

func TestChatView_AuthFailureIsNotRetryable(t *testing.T) {
	v, _ := newTestChat(t, statusCodeHandler(http.StatusUnauthorized))

	typeText(v, "secret")
	press(t, v, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, errLabelAuth, v.errLabel)
	require.False(t, v.canRetry())
}

func TestChatView_NothingToRetry(t *testing.T) {
	v, _ := newTestChat(t, stub.NewRelayHandler(stub.RelayOptions{}))
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.Nil(t, cmd)
	require.Equal(t, "nothing to retry", v.status)
}

func TestChatView_CopyLastReply(t *testing.T) {
	v, _ := newTestChat(t, stub.NewRelayHandler(stub.RelayOptions{Prefix: "copy "}))
	var copied string
	v.copy = func(s string) error { copied = s; return nil }

	v.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	require.Equal(t, "no reply to copy", v.status)

	typeText(v, "me")
	press(t, v, tea.KeyMsg{Type: tea.KeyEnter})
	v.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	require.Equal(t, "copy me", copied)

	v.copy = func(string) error { return errors.New("no clipboard") }
	v.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	require.Equal(t, "copy failed: no clipboard", v.status)
}

func TestChatView_ClearEmptiesTranscriptAndStore(t *testing.T) {
	v, store := newTestChat(t, stub.NewRelayHandler(stub.RelayOptions{}))
	typeText(v, "x")
	press(t, v, tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, v.entries, 2)

	press(t, v, tea.KeyMsg{Type: tea.KeyCtrlL})
	require.Empty(t, v.entries)
	stored, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestChatView_InitLoadsHistory(t *testing.T) {
	v, store := newTestChat(t, stub.NewRelayHandler(stub.RelayOptions{}))
	_, err := store.Append(context.Background(), history.Entry{Role: history.RoleUser, Content: "old", Status: history.StatusSent})
	require.NoError(t, err)

	cmd := v.Init()
	require.NotNil(t, cmd)
	v.Update(cmd())
	require.Len(t, v.entries, 1)
	require.Equal(t, "old", v.entries[0].Content)
}

func TestErrorLabel(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ai.RelayError{Kind: ai.KindTransport, Err: errors.New("refused")}, errLabelNetwork},
		{&ai.RelayError{Kind: ai.KindParse, Err: errors.New("eof")}, errLabelParse},
		{&ai.RelayError{Kind: ai.KindStatus, StatusCode: 503}, errLabelServer},
		{&ai.RelayError{Kind: ai.KindStatus, StatusCode: 404}, errLabelRequest},
		{&bridge.CommandError{Message: "api request failed: status code 401 Unauthorized", Kind: ai.KindStatus}, errLabelAuth},
		{&bridge.CommandError{Message: "api request failed: status code 500 Internal Server Error", Kind: ai.KindStatus}, errLabelServer},
		{&bridge.CommandError{Message: "send request failed: dial tcp", Kind: ai.KindTransport}, errLabelNetwork},
		{errors.New("something else"), errLabelUnknown},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ErrorLabel(tc.err), "%v", tc.err)
	}
}
