package core

import (
	"sync"

	"github.com/dkeye/agentvoice/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources. Every outbound frame is queued
// while r.mu is held, so each client sees room events in issue order.
type roomImpl struct {
	name domain.RoomName

	mu         sync.RWMutex
	cfg        domain.RoomConfig
	clients    map[domain.ClientID]Client
	lockOwner  domain.ClientID
	lastOutput string
	polling    bool
	evicted    bool
}

func NewRoomService(name domain.RoomName, cfg domain.RoomConfig) RoomService {
	return &roomImpl{
		name:    name,
		cfg:     cfg,
		clients: make(map[domain.ClientID]Client),
	}
}

func (r *roomImpl) Name() domain.RoomName { return r.name }

func (r *roomImpl) Config() domain.RoomConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

func (r *roomImpl) SetConfig(cfg domain.RoomConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

func (r *roomImpl) Session() domain.SessionName {
	return r.Config().Session(r.name)
}

func (r *roomImpl) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *roomImpl) HasClients() bool {
	return r.ClientCount() > 0
}

func (r *roomImpl) HasClient(id domain.ClientID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[id]
	return ok
}

// Attach adds c to the room and replays the current output snapshot to
// it. startPoller is true when no poller owns the room yet; the caller must
// start exactly one. ok is false when the room was evicted concurrently
// and the caller has to look it up again.
func (r *roomImpl) Attach(c Client) (startPoller bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted {
		return false, false
	}
	r.clients[c.ID()] = c
	if r.lastOutput != "" {
		// A full queue here is caught by the next broadcast.
		_ = c.TrySend(OutputFrame(r.lastOutput))
	}
	if !r.polling {
		r.polling = true
		startPoller = true
	}
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("client", string(c.ID())).Int("clients", len(r.clients)).Msg("client attached")
	return startPoller, true
}

// Detach removes the client and clears the mic lock if it held it. The
// poller notices an empty room on its own.
func (r *roomImpl) Detach(id domain.ClientID) (bool, PublishResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false, PublishResult{}
	}
	delete(r.clients, id)
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("client", string(id)).Int("clients", len(r.clients)).Msg("client detached")

	var res PublishResult
	if r.lockOwner == id {
		r.lockOwner = ""
		res = r.broadcastLocked("", EventFrame(EventRoomUnlocked))
		log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("client", string(id)).Msg("mic lock released on disconnect")
	}
	return true, res
}

// TryLock grants the mic to id when nobody holds it. Other clients are told
// the room is locked.
func (r *roomImpl) TryLock(id domain.ClientID) (bool, PublishResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false, PublishResult{}
	}
	if r.lockOwner != "" {
		return false, PublishResult{}
	}
	r.lockOwner = id
	return true, r.broadcastLocked(id, EventFrame(EventRoomLocked))
}

// Unlock clears the lock only when id owns it.
func (r *roomImpl) Unlock(id domain.ClientID) (bool, PublishResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" || r.lockOwner != id {
		return false, PublishResult{}
	}
	r.lockOwner = ""
	return true, r.broadcastLocked("", EventFrame(EventRoomUnlocked))
}

// ReleaseLock clears the lock whoever holds it.
func (r *roomImpl) ReleaseLock() (bool, PublishResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lockOwner == "" {
		return false, PublishResult{}
	}
	r.lockOwner = ""
	return true, r.broadcastLocked("", EventFrame(EventRoomUnlocked))
}

func (r *roomImpl) LockOwner() (domain.ClientID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lockOwner, r.lockOwner != ""
}

// PublishOutput stores text as the new snapshot and fans it out, unless it
// is byte-identical to the previous one.
func (r *roomImpl) PublishOutput(text string) (bool, PublishResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if text == r.lastOutput {
		return false, PublishResult{}
	}
	r.lastOutput = text
	return true, r.broadcastLocked("", OutputFrame(text))
}

// Broadcast sends data to every client except from. An empty from reaches
// everyone.
func (r *roomImpl) Broadcast(from domain.ClientID, data Frame) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcastLocked(from, data)
}

func (r *roomImpl) broadcastLocked(from domain.ClientID, data Frame) PublishResult {
	res := PublishResult{}
	for id, c := range r.clients {
		if id == from {
			continue
		}
		if err := c.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, c)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.name)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// ContinuePolling is the poller's exit check. When the room is empty the
// poller gives up ownership in the same critical section, so a concurrent
// Attach either sees the old poller alive or starts a new one.
func (r *roomImpl) ContinuePolling() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) == 0 {
		r.polling = false
		return false
	}
	return true
}

// MarkEvictedIfIdle retires the room when it has no clients and no poller.
// A retired room refuses further attaches.
func (r *roomImpl) MarkEvictedIfIdle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) == 0 && !r.polling {
		r.evicted = true
	}
	return r.evicted
}

func (r *roomImpl) Info() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomInfo{
		Name:        r.name,
		ClientCount: len(r.clients),
		Locked:      r.lockOwner != "",
		Polling:     r.polling,
	}
}
