package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/agentvoice/internal/core"
	"github.com/dkeye/agentvoice/internal/core/coretest"
	"github.com/dkeye/agentvoice/internal/domain"
	"github.com/dkeye/agentvoice/internal/session/sessiontest"
)

func TestRoomRegistry_GetOrCreateReturnsSameRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.rooms.GetOrCreate(ctx, "demo")
	b := h.rooms.GetOrCreate(ctx, "demo")
	assert.Same(t, a, b)
	assert.Equal(t, testDefaults, a.Config())
}

func TestRoomRegistry_ConfigFromStoreWithDefaults(t *testing.T) {
	h := newHarness(t)
	h.store.cfgs["demo"] = domain.RoomConfig{Voice: "alice", Machine: "gpu1"}

	room := h.rooms.GetOrCreate(context.Background(), "demo")
	assert.Equal(t, domain.RoomConfig{Voice: "alice", Exaggeration: 0.5, CFGWeight: 0.5, Machine: "gpu1"}, room.Config())
	assert.Equal(t, domain.SessionName("demo@gpu1"), room.Session())
}

func TestRoomRegistry_StoreErrorFallsBackToDefaults(t *testing.T) {
	h := newHarness(t)
	h.store.err = errors.New("disk on fire")

	assert.Equal(t, testDefaults, h.rooms.Config(context.Background(), "demo"))
}

func TestRoomRegistry_UpdateConfigIsVisibleImmediately(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := coretest.NewClient("a")
	room := h.rooms.Attach(ctx, "demo", c)

	voice := "bob"
	cfg, err := h.rooms.UpdateConfig(ctx, "demo", domain.ConfigPatch{Voice: &voice})
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Voice)
	assert.Equal(t, "bob", room.Config().Voice)
	assert.Equal(t, "bob", h.rooms.Config(ctx, "demo").Voice)
	assert.Equal(t, "bob", h.store.cfgs["demo"].Voice)
}

func TestRoomRegistry_UpdateConfigOfIdleRoom(t *testing.T) {
	h := newHarness(t)
	weight := 0.9

	cfg, err := h.rooms.UpdateConfig(context.Background(), "later", domain.ConfigPatch{CFGWeight: &weight})
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.CFGWeight)
	assert.Equal(t, "default", h.store.cfgs["later"].Voice)
	_, live := h.rooms.Lookup("later")
	assert.False(t, live, "config updates do not materialize rooms")
}

func TestRoomRegistry_EvictsAfterLastClientAndRestarts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := coretest.NewClient("a")

	first := h.rooms.Attach(ctx, "demo", c)
	assert.True(t, h.rooms.HasConnections("demo"))
	require.True(t, h.rooms.Detach("demo", c.ID()))

	require.Eventually(t, func() bool {
		_, ok := h.rooms.Lookup("demo")
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.False(t, h.rooms.HasConnections("demo"))

	second := h.rooms.Attach(ctx, "demo", c)
	assert.NotSame(t, first, second)
	assert.True(t, second.Info().Polling)
}

func TestRoomRegistry_DetachUnknown(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.rooms.Detach("nope", "ghost"))
}

func TestRoomRegistry_KicksSlowClients(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fast, slow := coretest.NewClient("fast"), coretest.NewClient("slow")
	room := h.rooms.Attach(ctx, "demo", fast)
	h.rooms.Attach(ctx, "demo", slow)
	slow.Refuse()

	h.rooms.HandleDropped(room, room.Broadcast("", core.EventFrame(core.EventTTSStart)))
	assert.True(t, slow.Closed())
	assert.Equal(t, 1, room.ClientCount())
	assert.False(t, fast.Closed())
}

func TestRoomRegistry_KickedOwnerReleasesLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner, other := coretest.NewClient("owner"), coretest.NewClient("other")
	room := h.rooms.Attach(ctx, "demo", owner)
	h.rooms.Attach(ctx, "demo", other)
	require.True(t, h.mic.TryLock("demo", owner.ID()))

	owner.Refuse()
	h.rooms.HandleDropped(room, room.Broadcast("", core.EventFrame(core.EventTTSStart)))
	_, locked := room.LockOwner()
	assert.False(t, locked)
	assert.Equal(t, 1, other.Count(core.EventRoomUnlocked))
}

func TestRoomRegistry_List(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.rooms.Attach(ctx, "zeta", coretest.NewClient("z"))
	h.rooms.Attach(ctx, "alpha", coretest.NewClient("a"))

	infos := h.rooms.List(ctx)
	require.Len(t, infos, 2)
	assert.Equal(t, domain.RoomName("alpha"), infos[0].Name)
	assert.Equal(t, 1, infos[0].ClientCount)
}

func TestRoomRegistry_ListIncludesStoredRooms(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.cfgs["idle"] = domain.RoomConfig{Voice: "alba"}
	h.store.cfgs["live"] = domain.RoomConfig{Voice: "alba"}
	h.rooms.Attach(ctx, "live", coretest.NewClient("a"))

	infos := h.rooms.List(ctx)
	require.Len(t, infos, 2)
	assert.Equal(t, core.RoomInfo{Name: "idle"}, infos[0])
	assert.Equal(t, domain.RoomName("live"), infos[1].Name)
	assert.Equal(t, 1, infos[1].ClientCount)
}

func TestRoomRegistry_ListSurvivesStoreFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.rooms.Attach(ctx, "live", coretest.NewClient("a"))
	h.store.mu.Lock()
	h.store.err = errors.New("disk gone")
	h.store.mu.Unlock()

	infos := h.rooms.List(ctx)
	require.Len(t, infos, 1)
	assert.Equal(t, domain.RoomName("live"), infos[0].Name)
}

// keepPolicy never kicks.
type keepPolicy struct{}

func (keepPolicy) OnBackPressure(core.RoomService, core.Client) bool { return false }

func TestRoomRegistry_PolicyCanKeepSlowClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rooms := NewRoomRegistry(ctx, nil, testDefaults, keepPolicy{})
	slow := coretest.NewClient("slow")
	room := rooms.Attach(ctx, "demo", slow)
	slow.Refuse()

	rooms.HandleDropped(room, room.Broadcast("", core.EventFrame(core.EventTTSStart)))
	assert.False(t, slow.Closed())
	assert.True(t, room.HasClient(slow.ID()))
}

func TestRoomRegistry_NoPollerAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := sessiontest.New()
	rooms := NewRoomRegistry(ctx, nil, testDefaults, nil)
	rooms.SetPoller(NewPoller(backend, time.Millisecond, 10, time.Second))

	cancel()
	rooms.Wait()

	rooms.Attach(context.Background(), "late", coretest.NewClient("a"))
	rooms.Wait()
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, backend.Polls())
}
