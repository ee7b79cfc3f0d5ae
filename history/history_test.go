package history

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/DachengChen/aibridge/config"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Clear(ctx))

	u, err := s.Append(ctx, Entry{Role: RoleUser, Content: "hello", Status: StatusSending})
	require.NoError(t, err)
	require.NotZero(t, u.ID)
	require.False(t, u.CreatedAt.IsZero())

	a, err := s.Append(ctx, Entry{Role: RoleAssistant, Content: "hi there"})
	require.NoError(t, err)
	require.Greater(t, a.ID, u.ID)

	require.NoError(t, s.UpdateStatus(ctx, u.ID, StatusSent))
	require.Error(t, s.UpdateStatus(ctx, a.ID+1000, StatusSent))

	all, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "hello", all[0].Content)
	require.Equal(t, StatusSent, all[0].Status)
	require.Equal(t, RoleAssistant, all[1].Role)

	last, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	require.Equal(t, "hi there", last[0].Content)

	require.NoError(t, s.Clear(ctx))
	all, err = s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

// exerciseLimit expects a store that keeps three entries.
func exerciseLimit(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Clear(ctx))
	for _, c := range []string{"a", "b", "c", "d", "e"} {
		_, err := s.Append(ctx, Entry{Role: RoleUser, Content: c})
		require.NoError(t, err)
	}
	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "c", all[0].Content)
	require.Equal(t, "e", all[2].Content)

	all, err = s.Recent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

// exerciseUnbounded checks that Recent(0) returns everything.
func exerciseUnbounded(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Clear(ctx))
	const n = 1205
	for i := 0; i < n; i++ {
		_, err := s.Append(ctx, Entry{Role: RoleUser, Content: "x"})
		require.NoError(t, err)
	}
	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, n)

	all, err = s.Recent(ctx, -1)
	require.NoError(t, err)
	require.Len(t, all, n)
	require.NoError(t, s.Clear(ctx))
}

func TestMemoryStore_Limit(t *testing.T) {
	exerciseLimit(t, NewMemoryStore(3))
}

func TestMemoryStore_Unbounded(t *testing.T) {
	exerciseUnbounded(t, NewMemoryStore(0))
}

func TestMemoryStore_ConcurrentAppend(t *testing.T) {
	s := NewMemoryStore(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Append(context.Background(), Entry{Role: RoleUser, Content: "x"})
		}()
	}
	wg.Wait()

	all, err := s.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, all, 50)
	seen := map[int64]bool{}
	for _, e := range all {
		require.False(t, seen[e.ID])
		seen[e.ID] = true
	}
}

func TestOpen_DefaultsToMemory(t *testing.T) {
	s, err := Open(context.Background(), config.HistoryConfig{Limit: 5}, nil)
	require.NoError(t, err)
	defer s.Close()
	require.IsType(t, &MemoryStore{}, s)
}

func TestOpen_BadDSN(t *testing.T) {
	_, err := Open(context.Background(), config.HistoryConfig{DSN: "postgres://%zz/db"}, nil)
	require.Error(t, err)
}

func TestPGStore(t *testing.T) {
	dsn := os.Getenv("AIBRIDGE_TEST_DSN")
	if dsn == "" {
		t.Skip("AIBRIDGE_TEST_DSN not set")
	}
	s, err := OpenPG(context.Background(), dsn, 0, nil)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
	exerciseUnbounded(t, s)
}

func TestPGStore_Limit(t *testing.T) {
	dsn := os.Getenv("AIBRIDGE_TEST_DSN")
	if dsn == "" {
		t.Skip("AIBRIDGE_TEST_DSN not set")
	}
	s, err := OpenPG(context.Background(), dsn, 3, nil)
	require.NoError(t, err)
	defer s.Close()
	exerciseLimit(t, s)
}
