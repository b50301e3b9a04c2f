package gateway

import (
	"context"

	"github.com/dkeye/agentvoice/internal/core"
	"github.com/dkeye/agentvoice/internal/domain"
)

func (g *Gateway) handleRecordingStarted(room domain.RoomName, c *wsConn) {
	if g.orch.RecordingStarted(room, c.ID()) {
		g.reply(c, core.EventFrame(core.EventLockGranted))
		return
	}
	g.reply(c, core.EventFrame(core.EventLockDenied))
}

func (g *Gateway) handleInput(ctx context.Context, room domain.RoomName, c *wsConn, text string) {
	if !g.limiter.Allow(c.ID()) {
		g.reply(c, core.ErrorFrame("too many inputs, slow down"))
		return
	}
	if err := g.orch.SubmitInput(ctx, room, c.ID(), text); err != nil {
		g.reply(c, core.ErrorFrame(err.Error()))
	}
}
