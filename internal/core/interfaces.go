package core

import (
	"context"

	"github.com/dkeye/agentvoice/internal/domain"
)

// Frame is a raw JSON payload bound for one client socket.
type Frame []byte

// Client abstracts a connected browser endpoint.
// Owned by the adapter; the adapter must Close() it.
type Client interface {
	ID() domain.ClientID
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to the app layer.
type PublishResult struct {
	SendTo  int
	Dropped []Client
}

// ConfigStore persists RoomConfig records keyed by room name.
type ConfigStore interface {
	Load(ctx context.Context, name domain.RoomName) (domain.RoomConfig, bool, error)
	Save(ctx context.Context, name domain.RoomName, cfg domain.RoomConfig) error
	// List returns the names of every room with a stored config.
	List(ctx context.Context) ([]domain.RoomName, error)
}

// RoomService is the core-facing API of a room.
// It owns the client set, the mic lock and the output snapshot but never
// touches transport resources.
type RoomService interface {
	Name() domain.RoomName
	Config() domain.RoomConfig
	SetConfig(cfg domain.RoomConfig)
	Session() domain.SessionName

	ClientCount() int
	HasClients() bool
	HasClient(id domain.ClientID) bool
	Attach(c Client) (startPoller bool, ok bool)
	Detach(id domain.ClientID) (bool, PublishResult)

	TryLock(id domain.ClientID) (bool, PublishResult)
	Unlock(id domain.ClientID) (bool, PublishResult)
	ReleaseLock() (bool, PublishResult)
	LockOwner() (domain.ClientID, bool)

	PublishOutput(text string) (bool, PublishResult)
	Broadcast(from domain.ClientID, data Frame) PublishResult

	ContinuePolling() bool
	MarkEvictedIfIdle() bool

	Info() RoomInfo
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	ClientCount int             `json:"client_count"`
	Locked      bool            `json:"locked"`
	Polling     bool            `json:"polling"`
}
