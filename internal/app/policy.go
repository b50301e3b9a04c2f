package app

import "github.com/dkeye/agentvoice/internal/core"

// Policy decides whether a client whose send queue is full is kicked.
// A client that is kept simply misses the frame.
type Policy interface {
	OnBackPressure(room core.RoomService, client core.Client) (kick bool)
}

// SimplePolicy kicks slow clients; a dropped broadcast already means the
// client missed room state it cannot recover.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.RoomService, core.Client) bool {
	return true
}
