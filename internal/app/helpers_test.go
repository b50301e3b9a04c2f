package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/agentvoice/internal/domain"
	"github.com/dkeye/agentvoice/internal/session/sessiontest"
)

var testDefaults = domain.RoomConfig{Voice: "default", Exaggeration: 0.5, CFGWeight: 0.5}

type memStore struct {
	mu    sync.Mutex
	cfgs  map[domain.RoomName]domain.RoomConfig
	saves int
	err   error
}

func newMemStore() *memStore {
	return &memStore{cfgs: map[domain.RoomName]domain.RoomConfig{}}
}

func (s *memStore) Load(_ context.Context, name domain.RoomName) (domain.RoomConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.RoomConfig{}, false, s.err
	}
	cfg, ok := s.cfgs[name]
	return cfg, ok, nil
}

func (s *memStore) Save(_ context.Context, name domain.RoomName, cfg domain.RoomConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves++
	s.cfgs[name] = cfg
	return nil
}

func (s *memStore) List(context.Context) ([]domain.RoomName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.RoomName, 0, len(s.cfgs))
	for name := range s.cfgs {
		out = append(out, name)
	}
	return out, nil
}

type harness struct {
	rooms   *RoomRegistry
	mic     *MicLock
	backend *sessiontest.Fake
	store   *memStore
}

// newHarness wires a registry with a fast poller over a fake backend.
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	store := newMemStore()
	backend := sessiontest.New()
	rooms := NewRoomRegistry(ctx, store, testDefaults, nil)
	rooms.SetPoller(NewPoller(backend, 5*time.Millisecond, 50, time.Second))
	t.Cleanup(func() {
		cancel()
		rooms.Wait()
	})
	return &harness{rooms: rooms, mic: NewMicLock(rooms), backend: backend, store: store}
}

func patchVoice(v string) domain.ConfigPatch {
	return domain.ConfigPatch{Voice: &v}
}
