package gateway

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dkeye/agentvoice/internal/core"
	"github.com/dkeye/agentvoice/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// wsConn is the room's view of one browser socket. Frames are queued on
// send and written by the connection's single write pump.
type wsConn struct {
	id   domain.ClientID
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		id:   domain.NewClientID(),
		conn: conn,
		send: make(chan core.Frame, buffer),
	}
}

func (c *wsConn) ID() domain.ClientID { return c.id }

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close is idempotent. Closing the socket also unblocks the read pump.
func (c *wsConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}
