package session

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/domain"
)

// Tmux is a Backend over the tmux CLI. Local sessions run against the
// server at socket (the default server when empty). Sessions qualified
// with a machine id run the same tmux commands through ssh on the host
// configured for that machine. Machine ids are case-insensitive.
type Tmux struct {
	runner   Runner
	socket   string
	machines map[string]string
}

func NewTmux(runner Runner, socket string, machines map[string]string) *Tmux {
	if runner == nil {
		runner = ExecRunner{}
	}
	normalized := make(map[string]string, len(machines))
	for id, host := range machines {
		normalized[strings.ToLower(id)] = host
	}
	return &Tmux{runner: runner, socket: socket, machines: normalized}
}

func (t *Tmux) CreateSession(ctx context.Context, name domain.SessionName, path string) error {
	if bare(name) == "" {
		return ErrInvalidSession
	}
	args := []string{"new-session", "-d", "-s", bare(name)}
	if path != "" {
		args = append(args, "-c", path)
	}
	if _, err := t.run(ctx, name, args...); err != nil {
		return fmt.Errorf("creating session %q: %w", name, err)
	}
	log.Info().Str("module", "session.tmux").Str("session", string(name)).Str("path", path).Msg("session created")
	return nil
}

func (t *Tmux) SessionExists(ctx context.Context, name domain.SessionName) bool {
	_, err := t.run(ctx, name, "has-session", "-t", "="+bare(name))
	return err == nil
}

// GetOutput captures the visible pane plus scrollback and returns its last
// lines rows, with the pane's blank bottom padding removed.
func (t *Tmux) GetOutput(ctx context.Context, name domain.SessionName, lines int) (string, error) {
	args := []string{"capture-pane", "-p", "-J", "-t", bare(name)}
	if lines > 0 {
		args = append(args, "-S", "-"+strconv.Itoa(lines))
	}
	out, err := t.run(ctx, name, args...)
	if err != nil {
		return "", fmt.Errorf("capturing pane %q: %w", name, err)
	}
	return tailString(trimPane(out), lines), nil
}

// SendInput types text literally into the session, then presses Enter.
func (t *Tmux) SendInput(ctx context.Context, name domain.SessionName, text string) error {
	target := bare(name)
	if text != "" {
		if _, err := t.run(ctx, name, "send-keys", "-t", target, "-l", "--", text); err != nil {
			return fmt.Errorf("sending keys to %q: %w", name, err)
		}
	}
	if _, err := t.run(ctx, name, "send-keys", "-t", target, "Enter"); err != nil {
		return fmt.Errorf("sending enter to %q: %w", name, err)
	}
	return nil
}

func (t *Tmux) KillSession(ctx context.Context, name domain.SessionName) error {
	if _, err := t.run(ctx, name, "kill-session", "-t", "="+bare(name)); err != nil {
		return fmt.Errorf("killing session %q: %w", name, err)
	}
	log.Info().Str("module", "session.tmux").Str("session", string(name)).Msg("session killed")
	return nil
}

// ListSessions lists local sessions followed by every configured machine's
// sessions, qualified as name@machine. An unreachable machine contributes
// nothing.
func (t *Tmux) ListSessions(ctx context.Context) ([]domain.SessionName, error) {
	out, err := t.list(ctx, "")
	if err != nil {
		return nil, err
	}

	machines := make([]string, 0, len(t.machines))
	for id := range t.machines {
		machines = append(machines, id)
	}
	sort.Strings(machines)
	for _, id := range machines {
		remote, err := t.list(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("module", "session.tmux").Str("machine", id).Msg("listing remote sessions failed")
			continue
		}
		out = append(out, remote...)
	}
	return out, nil
}

func (t *Tmux) list(ctx context.Context, machine string) ([]domain.SessionName, error) {
	raw, err := t.run(ctx, domain.JoinSession("", machine), "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if noServer(raw) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	var out []domain.SessionName
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, domain.JoinSession(line, machine))
		}
	}
	return out, nil
}

// run executes a tmux subcommand on the machine that owns session.
func (t *Tmux) run(ctx context.Context, session domain.SessionName, args ...string) (string, error) {
	_, machine := session.Split()
	if machine == "" {
		full := args
		if t.socket != "" {
			full = append([]string{"-S", t.socket}, args...)
		}
		return t.runner.Run(ctx, "tmux", full...)
	}

	host, ok := t.machines[strings.ToLower(machine)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownMachine, machine)
	}
	remote := make([]string, 0, len(args)+1)
	remote = append(remote, "tmux")
	for _, a := range args {
		remote = append(remote, shellQuote(a))
	}
	return t.runner.Run(ctx, "ssh", "-o", "BatchMode=yes", host, "--", strings.Join(remote, " "))
}

func bare(name domain.SessionName) string {
	n, _ := name.Split()
	return n
}

func noServer(out string) bool {
	return strings.Contains(out, "no server running") || strings.Contains(out, "error connecting to")
}
