package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/core"
	"github.com/dkeye/agentvoice/internal/domain"
)

func (g *Gateway) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(g.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "gateway").Str("client", string(c.ID())).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "gateway").Str("client", string(c.ID())).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "gateway").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "gateway").Str("client", string(c.ID())).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "gateway").Str("client", string(c.ID())).Msg("ping failed")
				return
			}
		}
	}
}

// readPump owns the connection's lifetime: whatever ends it, the client
// leaves the room.
func (g *Gateway) readPump(ctx context.Context, cancel context.CancelFunc, room domain.RoomName, c *wsConn) {
	defer func() {
		log.Info().Str("module", "gateway").Str("room", string(room)).Str("client", string(c.ID())).Msg("readPump closing")
		g.orch.Leave(room, c.ID())
		g.limiter.Forget(c.ID())
		cancel()
		c.Close()
	}()

	pongWait := g.pingPeriod * 10 / 9
	c.conn.SetReadLimit(g.readLimit * hardLimitFactor)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		data, err := g.readFrame(c)
		if errors.Is(err, errFrameTooLarge) {
			log.Debug().Str("module", "gateway").Str("client", string(c.ID())).Msg("oversized frame dropped")
			g.reply(c, core.ErrorFrame(err.Error()))
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "gateway").Str("client", string(c.ID())).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		g.dispatch(ctx, room, c, data)
	}
}

// readFrame reads one message of at most readLimit bytes. A larger one is
// drained and reported as errFrameTooLarge, leaving the socket usable;
// only frames beyond the hard limit make gorilla close the connection.
func (g *Gateway) readFrame(c *wsConn) ([]byte, error) {
	_, r, err := c.conn.NextReader()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, g.readLimit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) <= g.readLimit {
		return data, nil
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	return nil, errFrameTooLarge
}

type inbound struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	msgRecordingStarted = "recording_started"
	msgRecordingStopped = "recording_stopped"
	msgInput            = "input"
	msgPing             = "ping"
)

func (g *Gateway) dispatch(ctx context.Context, room domain.RoomName, c *wsConn, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Str("module", "gateway").Str("client", string(c.ID())).Msg("bad json")
		return
	}

	switch msg.Type {
	case msgRecordingStarted:
		g.handleRecordingStarted(room, c)
	case msgRecordingStopped:
		g.orch.RecordingStopped(room, c.ID())
	case msgInput:
		g.handleInput(ctx, room, c, msg.Text)
	case msgPing:
		g.reply(c, core.EventFrame(core.EventPong))
	default:
		log.Debug().Str("module", "gateway").Str("type", msg.Type).Msg("unknown frame")
	}
}

// reply queues a frame for the requester only.
func (g *Gateway) reply(c *wsConn, f core.Frame) {
	if err := c.TrySend(f); err != nil {
		log.Debug().Err(err).Str("module", "gateway").Str("client", string(c.ID())).Msg("reply dropped")
	}
}
