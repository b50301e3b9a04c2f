package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog/log"
)

var ErrNoPlayer = errors.New("no audio player available")

// Player plays WAV audio on the speaker of the host it runs on.
type Player interface {
	Play(ctx context.Context, wav []byte) error
}

var (
	lookPath = exec.LookPath
	runCmd   = func(ctx context.Context, name string, args ...string) error {
		return exec.CommandContext(ctx, name, args...).Run()
	}
)

// CommandPlayer hands a temporary WAV file to a system audio player.
type CommandPlayer struct {
	bin  string
	args []string
}

// NewCommandPlayer uses override when it is on PATH, otherwise the first
// known player found. The result plays nothing when none is installed.
func NewCommandPlayer(override string) *CommandPlayer {
	candidates := autoPlayerCandidates()
	if override != "" {
		candidates = []string{override}
	}
	for _, c := range candidates {
		if _, err := lookPath(c); err == nil {
			log.Info().Str("module", "tts.player").Str("player", c).Msg("audio player selected")
			return &CommandPlayer{bin: c, args: playerArgs(c)}
		}
	}
	log.Warn().Str("module", "tts.player").Msg("no audio player found")
	return &CommandPlayer{}
}

func (p *CommandPlayer) Available() bool {
	return p != nil && p.bin != ""
}

func (p *CommandPlayer) Play(ctx context.Context, wav []byte) error {
	if !p.Available() {
		return ErrNoPlayer
	}
	f, err := os.CreateTemp("", "agentvoice-*.wav")
	if err != nil {
		return fmt.Errorf("creating temp audio file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(wav); err != nil {
		f.Close()
		return fmt.Errorf("writing temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp audio file: %w", err)
	}

	args := append(append([]string{}, p.args...), f.Name())
	err = runCmd(ctx, p.bin, args...)
	ttsPlaybackTotal.WithLabelValues(status(err)).Inc()
	if err != nil {
		return fmt.Errorf("%s: %w", p.bin, err)
	}
	return nil
}

func autoPlayerCandidates() []string {
	if runtime.GOOS == "darwin" {
		return []string{"afplay"}
	}
	return []string{"paplay", "pw-play", "aplay", "ffplay"}
}

func playerArgs(bin string) []string {
	switch bin {
	case "aplay":
		return []string{"-q"}
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}
	default:
		return nil
	}
}
