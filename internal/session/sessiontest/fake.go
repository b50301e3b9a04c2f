// Package sessiontest provides an in-memory session.Backend.
package sessiontest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dkeye/agentvoice/internal/domain"
)

var ErrNoSession = errors.New("sessiontest: no such session")

// Fake keeps per-session output and records typed input.
type Fake struct {
	mu       sync.Mutex
	output   map[domain.SessionName]string
	inputs   map[domain.SessionName][]string
	paths    map[domain.SessionName]string
	failPoll error
	polls    int
}

func New() *Fake {
	return &Fake{
		output: map[domain.SessionName]string{},
		inputs: map[domain.SessionName][]string{},
		paths:  map[domain.SessionName]string{},
	}
}

// SetOutput replaces what GetOutput returns for name and creates the
// session if needed.
func (f *Fake) SetOutput(name domain.SessionName, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.output[name] = text
}

// FailPolls makes GetOutput return err until called again with nil.
func (f *Fake) FailPolls(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPoll = err
}

func (f *Fake) Polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *Fake) Inputs(name domain.SessionName) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs[name]...)
}

func (f *Fake) Path(name domain.SessionName) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paths[name]
}

func (f *Fake) CreateSession(_ context.Context, name domain.SessionName, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.output[name]; !ok {
		f.output[name] = ""
	}
	f.paths[name] = path
	return nil
}

func (f *Fake) SessionExists(_ context.Context, name domain.SessionName) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.output[name]
	return ok
}

func (f *Fake) GetOutput(ctx context.Context, name domain.SessionName, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.failPoll != nil {
		return "", f.failPoll
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.output[name], nil
}

func (f *Fake) SendInput(_ context.Context, name domain.SessionName, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.output[name]; !ok {
		return ErrNoSession
	}
	f.inputs[name] = append(f.inputs[name], text)
	return nil
}

func (f *Fake) KillSession(_ context.Context, name domain.SessionName) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.output[name]; !ok {
		return ErrNoSession
	}
	delete(f.output, name)
	return nil
}

func (f *Fake) ListSessions(context.Context) ([]domain.SessionName, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SessionName, 0, len(f.output))
	for name := range f.output {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
