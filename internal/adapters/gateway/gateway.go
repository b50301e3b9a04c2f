// Package gateway is the browser-facing WebSocket endpoint. Each socket is
// one room client: room events flow out through its send queue, and the
// client's recording and input frames flow in to the orchestrator.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/app/orch"
	"github.com/dkeye/agentvoice/internal/domain"
)

const (
	DefaultReadLimit  = 32 << 10
	DefaultPingPeriod = 54 * time.Second
	DefaultSendBuffer = 64
	writeWait         = 5 * time.Second

	// Frames up to readLimit*hardLimitFactor are drained and answered with
	// an error; anything larger is a protocol violation and ends the socket.
	hardLimitFactor = 16
)

var errFrameTooLarge = errors.New("frame too large")

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
	InputLimit int
	InputEvery time.Duration
}

type Gateway struct {
	orch       *orch.Orchestrator
	limiter    *RateLimiter
	readLimit  int64
	pingPeriod time.Duration
	sendBuffer int
}

func New(o *orch.Orchestrator, opts Options) *Gateway {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = DefaultPingPeriod
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	return &Gateway{
		orch:       o,
		limiter:    NewRateLimiter(opts.InputLimit, opts.InputEvery),
		readLimit:  opts.ReadLimit,
		pingPeriod: opts.PingPeriod,
		sendBuffer: opts.SendBuffer,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and attaches the socket to the room named
// by the :room path parameter. ctx bounds the connection's lifetime.
func (g *Gateway) HandleWS(ctx context.Context, c *gin.Context) {
	name, err := domain.ParseRoomName(c.Param("room"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "gateway").Str("room", string(name)).Msg("ws upgrade")
		return
	}

	conn := newWSConn(ws, g.sendBuffer)
	log.Info().Str("module", "gateway").Str("room", string(name)).Str("client", string(conn.ID())).Str("token", c.GetString("client_token")).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	g.orch.Join(ctx, name, conn)

	go g.writePump(ctx, conn)
	go g.readPump(ctx, cancel, name, conn)
}
