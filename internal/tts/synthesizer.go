// Package tts turns text into WAV audio and plays it on the host speaker.
package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/agentvoice/internal/config"
)

var (
	ErrNoSynthesizer = errors.New("no synthesis backend configured")
	ErrEmptyText     = errors.New("empty text")
)

// Request is one utterance with the room's synthesis parameters.
type Request struct {
	Text         string  `json:"text"`
	Voice        string  `json:"voice,omitempty"`
	Exaggeration float64 `json:"exaggeration,omitempty"`
	CFGWeight    float64 `json:"cfg_weight,omitempty"`
}

// Audio is a synthesized WAV file.
type Audio struct {
	WAV    []byte
	Format Format
}

// Synthesizer is the capability every synthesis backend implements.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (*Audio, error)
	Voices(ctx context.Context) ([]string, error)
}

// New builds the backend named by cfg.Backend.
func New(cfg config.TTSConfig) (Synthesizer, error) {
	switch cfg.Backend {
	case "http":
		return NewHTTPSynthesizer(cfg.URL, cfg.Timeout), nil
	case "command":
		return NewCommandSynthesizer(cfg.Command), nil
	case "none", "":
		return nil, ErrNoSynthesizer
	default:
		return nil, fmt.Errorf("tts backend %q: %w", cfg.Backend, ErrNoSynthesizer)
	}
}
