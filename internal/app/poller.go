package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/core"
	"github.com/dkeye/agentvoice/internal/session"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultPollLines    = 200
)

// DropHandler receives clients a broadcast could not reach.
type DropHandler interface {
	HandleDropped(room core.RoomService, res core.PublishResult)
}

// Poller mirrors a session's terminal output into its room. One Run call
// owns one room until the room is empty at the top of an iteration.
type Poller struct {
	backend  session.Backend
	interval time.Duration
	lines    int
	timeout  time.Duration
}

// NewPoller builds a poller. Each backend call is bounded by timeout,
// which defaults to four poll intervals.
func NewPoller(backend session.Backend, interval time.Duration, lines int, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if lines <= 0 {
		lines = DefaultPollLines
	}
	if timeout <= 0 {
		timeout = 4 * interval
	}
	return &Poller{backend: backend, interval: interval, lines: lines, timeout: timeout}
}

// Run polls until the room has no clients. Backend errors skip one
// iteration and never end the loop.
func (p *Poller) Run(ctx context.Context, room core.RoomService, drops DropHandler) {
	name := string(room.Name())
	log.Info().Str("module", "app.poller").Str("room", name).Msg("poller started")
	defer log.Info().Str("module", "app.poller").Str("room", name).Msg("poller stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if !room.ContinuePolling() {
			return
		}
		p.poll(ctx, room, drops)
		timer.Reset(p.interval)
	}
}

func (p *Poller) poll(ctx context.Context, room core.RoomService, drops DropHandler) {
	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, err := p.backend.GetOutput(pctx, room.Session(), p.lines)
	if err != nil {
		metricPollErrors.Inc()
		log.Debug().Err(err).Str("module", "app.poller").Str("room", string(room.Name())).Msg("poll failed")
		return
	}
	changed, res := room.PublishOutput(text)
	if !changed {
		return
	}
	metricOutputBroadcasts.Inc()
	if drops != nil {
		drops.HandleDropped(room, res)
	}
}
