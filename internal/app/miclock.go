package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/domain"
)

// MicLock enforces a single active recorder per room. There is no queue:
// a denied request fails at once and the client retries.
type MicLock struct {
	rooms *RoomRegistry
}

func NewMicLock(rooms *RoomRegistry) *MicLock {
	return &MicLock{rooms: rooms}
}

func (m *MicLock) TryLock(name domain.RoomName, id domain.ClientID) bool {
	room, ok := m.rooms.Lookup(name)
	if !ok {
		metricMicLock.WithLabelValues("lock", result(false)).Inc()
		return false
	}
	granted, res := room.TryLock(id)
	m.rooms.HandleDropped(room, res)
	metricMicLock.WithLabelValues("lock", result(granted)).Inc()
	log.Info().Str("module", "app.miclock").Str("room", string(name)).Str("client", string(id)).Bool("granted", granted).Msg("mic lock requested")
	return granted
}

// Unlock releases the lock only when id holds it.
func (m *MicLock) Unlock(name domain.RoomName, id domain.ClientID) bool {
	room, ok := m.rooms.Lookup(name)
	if !ok {
		return false
	}
	released, res := room.Unlock(id)
	m.rooms.HandleDropped(room, res)
	metricMicLock.WithLabelValues("unlock", result(released)).Inc()
	if released {
		log.Info().Str("module", "app.miclock").Str("room", string(name)).Str("client", string(id)).Msg("mic unlocked")
	}
	return released
}

// Release clears the lock regardless of owner. Releasing a room that is
// not live or not locked does nothing.
func (m *MicLock) Release(name domain.RoomName) bool {
	room, ok := m.rooms.Lookup(name)
	if !ok {
		return false
	}
	released, res := room.ReleaseLock()
	m.rooms.HandleDropped(room, res)
	if released {
		metricMicLock.WithLabelValues("release", result(true)).Inc()
		log.Info().Str("module", "app.miclock").Str("room", string(name)).Msg("mic released after speech")
	}
	return released
}
