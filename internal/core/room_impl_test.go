package core_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/agentvoice/internal/core"
	"github.com/dkeye/agentvoice/internal/core/coretest"
	"github.com/dkeye/agentvoice/internal/domain"
)

func newRoom() core.RoomService {
	return core.NewRoomService("demo", domain.RoomConfig{Voice: "default"})
}

func TestRoom_AttachStartsOnePoller(t *testing.T) {
	room := newRoom()
	a, b := coretest.NewClient("a"), coretest.NewClient("b")

	start, ok := room.Attach(a)
	require.True(t, ok)
	assert.True(t, start)

	start, ok = room.Attach(b)
	require.True(t, ok)
	assert.False(t, start, "second attach must not start another poller")
	assert.Equal(t, 2, room.ClientCount())
}

func TestRoom_ContinuePollingReleasesOwnership(t *testing.T) {
	room := newRoom()
	a := coretest.NewClient("a")
	room.Attach(a)

	assert.True(t, room.ContinuePolling())
	room.Detach(a.ID())
	assert.True(t, room.Info().Polling, "detach leaves teardown to the poller")
	assert.False(t, room.ContinuePolling())
	assert.False(t, room.Info().Polling)

	start, ok := room.Attach(a)
	require.True(t, ok)
	assert.True(t, start, "reattach after exit starts a fresh poller")
}

func TestRoom_AttachDetachSequenceSinglePoller(t *testing.T) {
	room := newRoom()
	clients := []*coretest.Client{coretest.NewClient("a"), coretest.NewClient("b"), coretest.NewClient("c")}
	owners := 0

	// Each step either attaches, detaches or runs one poller exit check.
	steps := "aAbcpBpCapbApBpcCpp"
	for _, step := range steps {
		switch {
		case step == 'p':
			if owners == 1 && !room.ContinuePolling() {
				owners--
			}
		case step >= 'a' && step <= 'c':
			if start, ok := room.Attach(clients[step-'a']); ok && start {
				owners++
			}
		default:
			room.Detach(clients[step-'A'].ID())
		}
		require.LessOrEqual(t, owners, 1, "step %q", step)
		assert.Equal(t, owners == 1, room.Info().Polling, "step %q", step)
	}
}

func TestRoom_ConcurrentAttachDetachBalancesPollers(t *testing.T) {
	room := newRoom()
	var (
		mu     sync.Mutex
		starts int
		exits  int
		wg     sync.WaitGroup
	)

	var clients sync.WaitGroup
	for i := 0; i < 50; i++ {
		clients.Add(1)
		go func(i int) {
			defer clients.Done()
			c := coretest.NewClient(string(rune('A'+i%26)) + string(rune('a'+i/26)))
			if start, _ := room.Attach(c); start {
				mu.Lock()
				starts++
				mu.Unlock()
				wg.Add(1)
				go func() {
					defer wg.Done()
					for room.ContinuePolling() {
					}
					mu.Lock()
					exits++
					mu.Unlock()
				}()
			}
			room.Detach(c.ID())
		}(i)
	}
	clients.Wait()
	wg.Wait()
	assert.Equal(t, starts, exits)
	assert.False(t, room.Info().Polling)
}

func TestRoom_MicLockExclusive(t *testing.T) {
	room := newRoom()
	a, b, c := coretest.NewClient("a"), coretest.NewClient("b"), coretest.NewClient("c")
	room.Attach(a)
	room.Attach(b)
	room.Attach(c)

	granted, res := room.TryLock(a.ID())
	require.True(t, granted)
	assert.Equal(t, 2, res.SendTo)
	assert.Equal(t, []string{core.EventRoomLocked}, b.Types())
	assert.Empty(t, a.Types(), "owner is not told about its own lock")

	granted, _ = room.TryLock(b.ID())
	assert.False(t, granted)

	ok, _ := room.Unlock(b.ID())
	assert.False(t, ok, "non-owner unlock is a no-op")
	owner, locked := room.LockOwner()
	assert.True(t, locked)
	assert.Equal(t, a.ID(), owner)

	ok, _ = room.Unlock(a.ID())
	assert.True(t, ok)
	assert.Equal(t, 1, a.Count(core.EventRoomUnlocked))
	assert.Equal(t, 1, b.Count(core.EventRoomUnlocked))

	granted, _ = room.TryLock(b.ID())
	assert.True(t, granted)
}

func TestRoom_TryLockRequiresAttachedClient(t *testing.T) {
	room := newRoom()
	granted, _ := room.TryLock("ghost")
	assert.False(t, granted)
}

func TestRoom_DetachOwnerClearsLock(t *testing.T) {
	room := newRoom()
	a, b := coretest.NewClient("a"), coretest.NewClient("b")
	room.Attach(a)
	room.Attach(b)
	room.TryLock(a.ID())

	removed, _ := room.Detach(b.ID())
	assert.True(t, removed)
	_, locked := room.LockOwner()
	assert.True(t, locked, "non-owner disconnect keeps the lock")

	room.Attach(b)
	room.Detach(a.ID())
	_, locked = room.LockOwner()
	assert.False(t, locked)
	assert.Equal(t, 1, b.Count(core.EventRoomUnlocked))
}

func TestRoom_ReleaseLock(t *testing.T) {
	room := newRoom()
	released, _ := room.ReleaseLock()
	assert.False(t, released, "releasing an unlocked room is a no-op")

	a := coretest.NewClient("a")
	room.Attach(a)
	room.TryLock(a.ID())
	released, _ = room.ReleaseLock()
	assert.True(t, released)
	assert.Equal(t, []string{core.EventRoomUnlocked}, a.Types())
}

func TestRoom_PublishOutputSkipsDuplicates(t *testing.T) {
	room := newRoom()
	a := coretest.NewClient("a")
	room.Attach(a)

	changed, _ := room.PublishOutput("")
	assert.False(t, changed)
	changed, _ = room.PublishOutput("hello")
	assert.True(t, changed)
	changed, _ = room.PublishOutput("hello")
	assert.False(t, changed)

	events := a.Events()
	require.Len(t, events, 1)
	assert.Equal(t, core.Event{Type: core.EventOutput, Data: "hello"}, events[0])
}

func TestRoom_AttachReplaysSnapshot(t *testing.T) {
	room := newRoom()
	a, b := coretest.NewClient("a"), coretest.NewClient("b")
	room.Attach(a)
	room.PublishOutput("hello")

	room.Attach(b)
	assert.Equal(t, []core.Event{{Type: core.EventOutput, Data: "hello"}}, b.Events())
	assert.Equal(t, 1, a.Count(core.EventOutput), "existing clients are not re-sent the snapshot")
}

func TestRoom_HasClient(t *testing.T) {
	room := newRoom()
	a := coretest.NewClient("a")
	room.Attach(a)
	assert.True(t, room.HasClient(a.ID()))
	assert.False(t, room.HasClient("b"))
	room.Detach(a.ID())
	assert.False(t, room.HasClient(a.ID()))
}

func TestRoom_BroadcastReportsDropped(t *testing.T) {
	room := newRoom()
	a, b := coretest.NewClient("a"), coretest.NewClient("b")
	room.Attach(a)
	room.Attach(b)
	b.Refuse()

	res := room.Broadcast("", core.EventFrame(core.EventTTSStart))
	assert.Equal(t, 1, res.SendTo)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, b.ID(), res.Dropped[0].ID())

	res = room.Broadcast(a.ID(), core.EventFrame(core.EventTTSStart))
	assert.Equal(t, 0, res.SendTo)
}

func TestRoom_MarkEvictedIfIdle(t *testing.T) {
	room := newRoom()
	a := coretest.NewClient("a")
	room.Attach(a)
	assert.False(t, room.MarkEvictedIfIdle())

	room.Detach(a.ID())
	assert.False(t, room.MarkEvictedIfIdle(), "poller still owns the room")
	room.ContinuePolling()
	assert.True(t, room.MarkEvictedIfIdle())

	_, ok := room.Attach(a)
	assert.False(t, ok)
}

func TestRoom_SessionFollowsMachine(t *testing.T) {
	room := newRoom()
	assert.Equal(t, domain.SessionName("demo"), room.Session())
	room.SetConfig(domain.RoomConfig{Machine: "gpu1"})
	assert.Equal(t, domain.SessionName("demo@gpu1"), room.Session())
}
