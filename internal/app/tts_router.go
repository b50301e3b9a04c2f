package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/domain"
	"github.com/dkeye/agentvoice/internal/tts"
)

const DefaultProbeTimeout = 3 * time.Second

var ErrNoListeners = errors.New("room has no listeners")

// Prober answers whether a room has at least one attached client.
type Prober interface {
	HasConnections(ctx context.Context, room domain.RoomName) (bool, error)
}

// RoomDelivery sends speech to a room's browsers or to the speaker of the
// host the room's session lives on.
type RoomDelivery interface {
	Broadcast(ctx context.Context, room domain.RoomName, text, voice string) error
	LocalSpeak(ctx context.Context, room domain.RoomName, text, voice string) error
}

type MicReleaser interface {
	ReleaseMic(ctx context.Context, room domain.RoomName) error
}

// DirectSpeaker is the synthesis backend reached without any room.
type DirectSpeaker interface {
	Say(ctx context.Context, req tts.Request) error
}

// TTSRouter picks exactly one delivery path per utterance. A failed path
// is final for that call; nothing falls back to another branch.
type TTSRouter struct {
	probe        Prober
	rooms        RoomDelivery
	mic          MicReleaser
	direct       DirectSpeaker
	defaultVoice string
	probeTimeout time.Duration
}

func NewTTSRouter(probe Prober, rooms RoomDelivery, mic MicReleaser, direct DirectSpeaker, defaultVoice string, probeTimeout time.Duration) *TTSRouter {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &TTSRouter{
		probe:        probe,
		rooms:        rooms,
		mic:          mic,
		direct:       direct,
		defaultVoice: defaultVoice,
		probeTimeout: probeTimeout,
	}
}

// Speak delivers text. An empty session means the caller is not running
// inside any session.
func (t *TTSRouter) Speak(ctx context.Context, text, voice string, session domain.SessionName) domain.RoutingDecision {
	var d domain.RoutingDecision
	switch {
	case session == "":
		d = t.speakDirect(ctx, text, voice)
	case t.hasListeners(ctx, session.Room()):
		d = t.deliver(ctx, domain.RouteBroadcast, session.Room(), func() error {
			return t.rooms.Broadcast(ctx, session.Room(), text, voice)
		})
	default:
		d = t.deliver(ctx, domain.RouteLocalSpeaker, session.Room(), func() error {
			return t.rooms.LocalSpeak(ctx, session.Room(), text, voice)
		})
	}

	metricRouting.WithLabelValues(string(d.Attempted), string(d.Path)).Inc()
	ev := log.Info()
	if d.Err != nil {
		ev = log.Warn().Err(d.Err)
	}
	ev.Str("module", "app.tts_router").Str("session", string(session)).Str("attempted", string(d.Attempted)).Str("path", string(d.Path)).Msg("speech routed")
	return d
}

// hasListeners treats every probe failure, timeouts included, as no.
func (t *TTSRouter) hasListeners(ctx context.Context, room domain.RoomName) bool {
	pctx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()
	ok, err := t.probe.HasConnections(pctx, room)
	if err != nil {
		log.Debug().Err(err).Str("module", "app.tts_router").Str("room", string(room)).Msg("probe failed")
		return false
	}
	return ok
}

func (t *TTSRouter) deliver(ctx context.Context, path domain.RoutePath, room domain.RoomName, send func() error) domain.RoutingDecision {
	if err := send(); err != nil {
		return domain.RoutingDecision{Path: domain.RouteNone, Attempted: path, Err: err}
	}
	// Speaking ends the listening phase of the room.
	if t.mic != nil {
		if err := t.mic.ReleaseMic(ctx, room); err != nil {
			log.Debug().Err(err).Str("module", "app.tts_router").Str("room", string(room)).Msg("mic release failed")
		}
	}
	return domain.RoutingDecision{Path: path, Attempted: path}
}

func (t *TTSRouter) speakDirect(ctx context.Context, text, voice string) domain.RoutingDecision {
	if voice == "" {
		voice = t.defaultVoice
	}
	if t.direct == nil {
		return domain.RoutingDecision{Path: domain.RouteNone, Attempted: domain.RouteDirectBackend, Err: tts.ErrNoSynthesizer}
	}
	if err := t.direct.Say(ctx, tts.Request{Text: text, Voice: voice}); err != nil {
		return domain.RoutingDecision{Path: domain.RouteNone, Attempted: domain.RouteDirectBackend, Err: err}
	}
	return domain.RoutingDecision{Path: domain.RouteDirectBackend, Attempted: domain.RouteDirectBackend}
}
