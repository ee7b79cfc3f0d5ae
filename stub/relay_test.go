package stub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DachengChen/aibridge/ai"
	"github.com/stretchr/testify/require"
)

func TestRelayHandler_EchoesThroughRelay(t *testing.T) {
	srv := httptest.NewServer(NewRelayHandler(RelayOptions{Prefix: "echo: "}))
	defer srv.Close()

	resp, err := ai.NewRelay().Send(context.Background(), "héllo", srv.URL)
	require.NoError(t, err)
	require.Equal(t, "echo: héllo", resp.Reply)
}

func TestRelayHandler_RejectsNonPost(t *testing.T) {
	srv := httptest.NewServer(NewRelayHandler(RelayOptions{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}

func TestRelayHandler_BadJSON(t *testing.T) {
	srv := httptest.NewServer(NewRelayHandler(RelayOptions{}))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRelayHandler_RateLimitSurfacesAsStatusError(t *testing.T) {
	srv := httptest.NewServer(NewRelayHandler(RelayOptions{RatePerSecond: 0.001, Burst: 1}))
	defer srv.Close()
	relay := ai.NewRelay()

	_, err := relay.Send(context.Background(), "first", srv.URL)
	require.NoError(t, err)

	_, err = relay.Send(context.Background(), "second", srv.URL)
	require.EqualError(t, err, "api request failed: status code 429 Too Many Requests")
	require.True(t, ai.IsKind(err, ai.KindStatus))
}

func TestSplitChunks(t *testing.T) {
	require.Nil(t, splitChunks("", 5))
	require.Equal(t, []string{"ab", "cd", "e"}, splitChunks("abcde", 3))
	require.Equal(t, []string{"a", "b"}, splitChunks("ab", 5))
	require.Equal(t, []string{"日本", "語"}, splitChunks("日本語", 2))
	require.Equal(t, "hello world", strings.Join(splitChunks("hello world", 5), ""))
}
