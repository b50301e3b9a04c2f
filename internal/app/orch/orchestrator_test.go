package orch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/agentvoice/internal/app"
	"github.com/dkeye/agentvoice/internal/core/coretest"
	"github.com/dkeye/agentvoice/internal/domain"
	"github.com/dkeye/agentvoice/internal/session/sessiontest"
	"github.com/dkeye/agentvoice/internal/store"
)

func newOrchestrator(t *testing.T) (*Orchestrator, *sessiontest.Fake) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	backend := sessiontest.New()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	rooms := app.NewRoomRegistry(ctx, st, domain.RoomConfig{Voice: "default"}, nil)
	rooms.SetPoller(app.NewPoller(backend, 5*time.Millisecond, 20, time.Second))
	t.Cleanup(func() {
		cancel()
		rooms.Wait()
		_ = st.Close()
	})
	return &Orchestrator{Rooms: rooms, Mic: app.NewMicLock(rooms), Backend: backend}, backend
}

func TestSubmitInput(t *testing.T) {
	o, backend := newOrchestrator(t)
	ctx := context.Background()
	backend.SetOutput("demo", "$ ")
	c := coretest.NewClient("a")
	o.Join(ctx, "demo", c)

	require.NoError(t, o.SubmitInput(ctx, "demo", c.ID(), "ls -la\n"))
	assert.Equal(t, []string{"ls -la"}, backend.Inputs("demo"))

	assert.ErrorIs(t, o.SubmitInput(ctx, "demo", c.ID(), "  \n"), ErrEmptyInput)
	assert.ErrorIs(t, o.SubmitInput(ctx, "elsewhere", c.ID(), "pwd"), ErrNotAttached)
}

func TestSubmitInput_RequiresMembership(t *testing.T) {
	o, backend := newOrchestrator(t)
	ctx := context.Background()
	backend.SetOutput("demo", "$ ")
	member := coretest.NewClient("member")
	o.Join(ctx, "demo", member)

	assert.ErrorIs(t, o.SubmitInput(ctx, "demo", "stranger", "rm -rf /"), ErrNotAttached)
	assert.Empty(t, backend.Inputs("demo"))

	o.Leave("demo", member.ID())
	assert.ErrorIs(t, o.SubmitInput(ctx, "demo", member.ID(), "ls"), ErrNotAttached)
}

func TestSubmitInput_MissingSession(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()
	c := coretest.NewClient("a")
	o.Join(ctx, "ghost", c)

	err := o.SubmitInput(ctx, "ghost", c.ID(), "pwd")
	assert.ErrorIs(t, err, sessiontest.ErrNoSession)
}

func TestJoin_StartsSessionWithPath(t *testing.T) {
	o, backend := newOrchestrator(t)
	ctx := context.Background()
	path := "/srv/project"
	_, err := o.Rooms.UpdateConfig(ctx, "proj", domain.ConfigPatch{Path: &path})
	require.NoError(t, err)

	o.Join(ctx, "proj", coretest.NewClient("a"))
	assert.True(t, backend.SessionExists(ctx, "proj"))
	assert.Equal(t, path, backend.Path("proj"))
}

func TestJoin_WithoutPathLeavesBackendAlone(t *testing.T) {
	o, backend := newOrchestrator(t)
	ctx := context.Background()
	o.Join(ctx, "plain", coretest.NewClient("a"))
	assert.False(t, backend.SessionExists(ctx, "plain"))
}

func TestRecordingLifecycle(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()
	a, b := coretest.NewClient("a"), coretest.NewClient("b")
	o.Join(ctx, "demo", a)
	o.Join(ctx, "demo", b)

	assert.True(t, o.RecordingStarted("demo", a.ID()))
	assert.False(t, o.RecordingStarted("demo", b.ID()))
	assert.False(t, o.RecordingStopped("demo", b.ID()))
	assert.True(t, o.RecordingStopped("demo", a.ID()))
	assert.True(t, o.RecordingStarted("demo", b.ID()))

	o.Leave("demo", b.ID())
	o.Leave("demo", b.ID())
	assert.True(t, o.RecordingStarted("demo", a.ID()))
}
