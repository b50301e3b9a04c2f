package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/agentvoice/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "rooms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)
	cfg, found, err := s.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, domain.RoomConfig{}, cfg)
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := domain.RoomConfig{Voice: "alice", Exaggeration: 0.7, CFGWeight: 0.3, Machine: "gpu1", Path: "/srv/demo"}

	require.NoError(t, s.Save(ctx, "demo", want))
	got, found, err := s.Load(ctx, "demo")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	want.Voice = "bob"
	require.NoError(t, s.Save(ctx, "demo", want))
	got, _, err = s.Load(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Voice)
}

func TestSQLiteStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "zeta", domain.RoomConfig{}))
	require.NoError(t, s.Save(ctx, "alpha", domain.RoomConfig{}))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.RoomName{"alpha", "zeta"}, names)
}

func TestSQLiteStore_Memory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), "demo", domain.RoomConfig{Voice: "v"}))
	_, found, err := s.Load(context.Background(), "demo")
	require.NoError(t, err)
	assert.True(t, found)
}
