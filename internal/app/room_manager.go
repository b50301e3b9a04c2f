package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/core"
	"github.com/dkeye/agentvoice/internal/domain"
)

const storeTimeout = 2 * time.Second

// RoomRegistry is the single authority for rooms in this process. Rooms are
// created by the first attach and evicted once their poller has exited on
// an empty room.
type RoomRegistry struct {
	ctx      context.Context
	store    core.ConfigStore
	defaults domain.RoomConfig
	policy   Policy
	poller   *Poller

	mu    sync.RWMutex
	rooms map[domain.RoomName]core.RoomService

	// pollMu orders poller starts against Wait so wg.Add never races it.
	pollMu  sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewRoomRegistry wires the registry. Pollers inherit ctx and stop with it.
func NewRoomRegistry(ctx context.Context, store core.ConfigStore, defaults domain.RoomConfig, policy Policy) *RoomRegistry {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &RoomRegistry{
		ctx:      ctx,
		store:    store,
		defaults: defaults,
		policy:   policy,
		rooms:    make(map[domain.RoomName]core.RoomService),
	}
}

// SetPoller installs the poller started for every newly occupied room.
func (f *RoomRegistry) SetPoller(p *Poller) {
	f.poller = p
}

func (f *RoomRegistry) Lookup(name domain.RoomName) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[name]
	return room, ok
}

func (f *RoomRegistry) GetOrCreate(ctx context.Context, name domain.RoomName) core.RoomService {
	if room, ok := f.Lookup(name); ok {
		return room
	}
	cfg := f.loadConfig(ctx, name)

	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.rooms[name]; ok {
		return room
	}
	room := core.NewRoomService(name, cfg)
	f.rooms[name] = room
	metricRoomsLive.Inc()
	log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room created")
	return room
}

// Attach puts c into the named room, creating the room and its poller as
// needed.
func (f *RoomRegistry) Attach(ctx context.Context, name domain.RoomName, c core.Client) core.RoomService {
	for {
		room := f.GetOrCreate(ctx, name)
		start, ok := room.Attach(c)
		if !ok {
			// Evicted between lookup and attach; the next GetOrCreate
			// builds a fresh room.
			continue
		}
		metricClientsConnected.Inc()
		if start {
			f.startPoller(room)
		}
		return room
	}
}

// Detach removes the client; it clears the mic lock when the client held it.
func (f *RoomRegistry) Detach(name domain.RoomName, id domain.ClientID) bool {
	room, ok := f.Lookup(name)
	if !ok {
		return false
	}
	removed, res := room.Detach(id)
	if removed {
		metricClientsConnected.Dec()
	}
	f.HandleDropped(room, res)
	return removed
}

// HasConnections is the liveness probe: a room that is not live has no
// listeners.
func (f *RoomRegistry) HasConnections(name domain.RoomName) bool {
	room, ok := f.Lookup(name)
	return ok && room.HasClients()
}

// Config returns the live room's config, or the stored record with
// defaults applied when the room is not in memory.
func (f *RoomRegistry) Config(ctx context.Context, name domain.RoomName) domain.RoomConfig {
	if room, ok := f.Lookup(name); ok {
		return room.Config()
	}
	return f.loadConfig(ctx, name)
}

// UpdateConfig merges patch into the room's config and persists it. The
// live room sees the change before the store write.
func (f *RoomRegistry) UpdateConfig(ctx context.Context, name domain.RoomName, patch domain.ConfigPatch) (domain.RoomConfig, error) {
	var cfg domain.RoomConfig
	if room, ok := f.Lookup(name); ok {
		cfg = room.Config().Apply(patch)
		room.SetConfig(cfg)
	} else {
		cfg = f.loadConfig(ctx, name).Apply(patch)
	}
	if f.store == nil {
		return cfg, nil
	}
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := f.store.Save(sctx, name, cfg); err != nil {
		return cfg, fmt.Errorf("persisting config for %q: %w", name, err)
	}
	log.Info().Str("module", "app.rooms").Str("room", string(name)).Str("voice", cfg.Voice).Msg("room config updated")
	return cfg, nil
}

// List reports live rooms plus rooms that only have a stored config.
// A store failure is logged and the live rooms are still returned.
func (f *RoomRegistry) List(ctx context.Context) []core.RoomInfo {
	f.mu.RLock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	live := make(map[domain.RoomName]bool, len(f.rooms))
	for name, r := range f.rooms {
		out = append(out, r.Info())
		live[name] = true
	}
	f.mu.RUnlock()

	if f.store != nil {
		sctx, cancel := context.WithTimeout(ctx, storeTimeout)
		stored, err := f.store.List(sctx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("module", "app.rooms").Msg("listing stored rooms failed")
		}
		for _, name := range stored {
			if !live[name] {
				out = append(out, core.RoomInfo{Name: name})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HandleDropped applies the backpressure policy to clients a broadcast
// could not reach. Kicking a client can itself publish an unlock, which is
// handled the same way.
func (f *RoomRegistry) HandleDropped(room core.RoomService, res core.PublishResult) {
	for _, slow := range res.Dropped {
		if !f.policy.OnBackPressure(room, slow) {
			log.Debug().Str("module", "app.rooms").Str("room", string(room.Name())).Str("client", string(slow.ID())).Msg("frame dropped for slow client")
			continue
		}
		log.Warn().Str("module", "app.rooms").Str("room", string(room.Name())).Str("client", string(slow.ID())).Msg("kicking slow client")
		metricKicked.Inc()
		removed, more := room.Detach(slow.ID())
		if removed {
			metricClientsConnected.Dec()
		}
		slow.Close()
		f.HandleDropped(room, more)
	}
}

// Wait blocks until every poller has returned. No poller starts after
// Wait has been called.
func (f *RoomRegistry) Wait() {
	f.pollMu.Lock()
	f.closing = true
	f.pollMu.Unlock()
	f.wg.Wait()
}

func (f *RoomRegistry) startPoller(room core.RoomService) {
	if f.poller == nil {
		// Without a poller nobody would hand ownership back; do it now so
		// the room can still be evicted.
		room.ContinuePolling()
		return
	}
	f.pollMu.Lock()
	defer f.pollMu.Unlock()
	if f.closing || f.ctx.Err() != nil {
		log.Debug().Str("module", "app.rooms").Str("room", string(room.Name())).Msg("shutting down, poller not started")
		return
	}
	f.wg.Add(1)
	metricPollersRunning.Inc()
	go func() {
		defer f.wg.Done()
		defer metricPollersRunning.Dec()
		f.poller.Run(f.ctx, room, f)
		f.evictIfIdle(room)
	}()
}

func (f *RoomRegistry) evictIfIdle(room core.RoomService) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.rooms[room.Name()]; !ok || cur != room {
		return
	}
	if room.MarkEvictedIfIdle() {
		delete(f.rooms, room.Name())
		metricRoomsLive.Dec()
		log.Info().Str("module", "app.rooms").Str("room", string(room.Name())).Msg("room evicted")
	}
}

// loadConfig never fails: store problems fall back to the defaults.
func (f *RoomRegistry) loadConfig(ctx context.Context, name domain.RoomName) domain.RoomConfig {
	if f.store == nil {
		return f.defaults
	}
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	cfg, found, err := f.store.Load(sctx, name)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.rooms").Str("room", string(name)).Msg("config load failed, using defaults")
		return f.defaults
	}
	if !found {
		return f.defaults
	}
	return cfg.WithDefaults(f.defaults)
}
