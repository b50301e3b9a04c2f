// Package orch turns gateway events into room, mic lock and session
// backend calls.
package orch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/app"
	"github.com/dkeye/agentvoice/internal/domain"
	"github.com/dkeye/agentvoice/internal/session"
)

const backendTimeout = 5 * time.Second

var (
	ErrNotAttached = errors.New("client is not attached to the room")
	ErrEmptyInput  = errors.New("empty input")
)

type Orchestrator struct {
	Rooms   *app.RoomRegistry
	Mic     *app.MicLock
	Backend session.Backend
}

// SubmitInput types text into the room's session on behalf of a client.
func (o *Orchestrator) SubmitInput(ctx context.Context, name domain.RoomName, id domain.ClientID, text string) error {
	text = strings.TrimRight(text, "\r\n")
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	room, ok := o.Rooms.Lookup(name)
	if !ok || !room.HasClient(id) {
		return ErrNotAttached
	}
	bctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()
	if err := o.Backend.SendInput(bctx, room.Session(), text); err != nil {
		return fmt.Errorf("sending input to %q: %w", room.Session(), err)
	}
	log.Info().Str("module", "orch").Str("room", string(name)).Str("client", string(id)).Int("len", len(text)).Msg("input forwarded")
	return nil
}

// EnsureSession starts the room's session when it is missing and the room
// has a working directory configured.
func (o *Orchestrator) EnsureSession(ctx context.Context, name domain.RoomName) {
	cfg := o.Rooms.Config(ctx, name)
	if cfg.Path == "" {
		return
	}
	bctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()
	s := cfg.Session(name)
	if o.Backend.SessionExists(bctx, s) {
		return
	}
	if err := o.Backend.CreateSession(bctx, s, cfg.Path); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("session", string(s)).Msg("could not start session")
	}
}
