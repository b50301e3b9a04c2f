package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/core"
	"github.com/dkeye/agentvoice/internal/domain"
)

func (o *Orchestrator) Join(ctx context.Context, name domain.RoomName, c core.Client) core.RoomService {
	if o.Backend != nil {
		o.EnsureSession(ctx, name)
	}
	room := o.Rooms.Attach(ctx, name, c)
	log.Info().Str("module", "orch").Str("client", string(c.ID())).Str("room", string(name)).Msg("joined room")
	return room
}

// Leave detaches the client. It is safe to call more than once.
func (o *Orchestrator) Leave(name domain.RoomName, id domain.ClientID) {
	if o.Rooms.Detach(name, id) {
		log.Info().Str("module", "orch").Str("client", string(id)).Str("room", string(name)).Msg("left room")
	}
}

func (o *Orchestrator) RecordingStarted(name domain.RoomName, id domain.ClientID) bool {
	return o.Mic.TryLock(name, id)
}

func (o *Orchestrator) RecordingStopped(name domain.RoomName, id domain.ClientID) bool {
	return o.Mic.Unlock(name, id)
}
