// Package session talks to the terminal multiplexer that hosts agent
// sessions, locally or on a remote machine over ssh.
package session

import (
	"context"
	"errors"

	"github.com/dkeye/agentvoice/internal/domain"
)

var (
	ErrUnknownMachine = errors.New("unknown machine")
	ErrInvalidSession = errors.New("invalid session name")
)

// Backend is the session host contract. Names follow name@machine; a
// bare name is local. Failures come back as values and never panic.
type Backend interface {
	CreateSession(ctx context.Context, name domain.SessionName, path string) error
	SessionExists(ctx context.Context, name domain.SessionName) bool
	GetOutput(ctx context.Context, name domain.SessionName, lines int) (string, error)
	SendInput(ctx context.Context, name domain.SessionName, text string) error
	KillSession(ctx context.Context, name domain.SessionName) error
	ListSessions(ctx context.Context) ([]domain.SessionName, error)
}
