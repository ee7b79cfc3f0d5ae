package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEndpointStore_AddGetDeletePersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.json")

	s, err := OpenEndpointStore(path)
	require.NoError(t, err)
	require.Empty(t, s.Endpoints)

	s.Add(Endpoint{Name: "local", APIURL: "http://localhost:9999/chat"})
	s.Add(Endpoint{Name: "prod", APIURL: "https://api.example.com/ai"})
	s.Add(Endpoint{Name: "local", APIURL: "http://localhost:9000/chat"})
	require.Len(t, s.Endpoints, 2)
	require.NoError(t, s.Save())

	reloaded, err := OpenEndpointStore(path)
	require.NoError(t, err)
	ep, ok := reloaded.Get("local")
	require.True(t, ok)
	require.Equal(t, "http://localhost:9000/chat", ep.APIURL)

	reloaded.Delete("local")
	_, ok = reloaded.Get("local")
	require.False(t, ok)
	require.Len(t, reloaded.Endpoints, 1)
}
