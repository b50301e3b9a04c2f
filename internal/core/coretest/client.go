// Package coretest provides in-memory core.Client doubles for tests.
package coretest

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/agentvoice/internal/core"
	"github.com/dkeye/agentvoice/internal/domain"
)

var ErrFull = errors.New("coretest: client refuses frames")

// Client records every frame it accepts.
type Client struct {
	id domain.ClientID

	mu     sync.Mutex
	frames []core.Frame
	refuse bool
	closed bool
}

func NewClient(id string) *Client {
	return &Client{id: domain.ClientID(id)}
}

func (c *Client) ID() domain.ClientID { return c.id }

func (c *Client) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refuse || c.closed {
		return ErrFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Refuse makes every later TrySend fail as if the send queue were full.
func (c *Client) Refuse() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refuse = true
}

// Events decodes the recorded frames.
func (c *Client) Events() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Event, 0, len(c.frames))
	for _, f := range c.frames {
		var e core.Event
		if err := json.Unmarshal(f, &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// Types lists the event types received so far, in order.
func (c *Client) Types() []string {
	events := c.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// Count returns how many received events have the given type.
func (c *Client) Count(typ string) int {
	n := 0
	for _, e := range c.Events() {
		if e.Type == typ {
			n++
		}
	}
	return n
}
