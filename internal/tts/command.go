package tts

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandSynthesizer runs an espeak-compatible binary that writes WAV to
// stdout.
type CommandSynthesizer struct {
	bin string
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewCommandSynthesizer(bin string) *CommandSynthesizer {
	if bin == "" {
		bin = "espeak-ng"
	}
	return &CommandSynthesizer{bin: bin, run: runOutput}
}

func runOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (s *CommandSynthesizer) Name() string { return "command" }

func (s *CommandSynthesizer) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()
	args := []string{"--stdout"}
	if req.Voice != "" && req.Voice != "default" {
		args = append(args, "-v", req.Voice)
	}
	args = append(args, "--", req.Text)

	out, err := s.run(ctx, s.bin, args...)
	if err != nil {
		err = fmt.Errorf("%s: %w", s.bin, err)
		observe(s.Name(), start, err)
		return nil, err
	}
	format, err := parseWAV(out)
	if err != nil {
		err = fmt.Errorf("%s output: %w", s.bin, err)
	}
	observe(s.Name(), start, err)
	if err != nil {
		return nil, err
	}
	return &Audio{WAV: out, Format: format}, nil
}

// Voices parses the voice table printed by --voices; the voice name is
// the fourth column.
func (s *CommandSynthesizer) Voices(ctx context.Context) ([]string, error) {
	out, err := s.run(ctx, s.bin, "--voices")
	if err != nil {
		return nil, fmt.Errorf("%s --voices: %w", s.bin, err)
	}
	var voices []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) >= 4 {
			voices = append(voices, fields[3])
		}
	}
	return voices, sc.Err()
}
