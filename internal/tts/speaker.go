package tts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// LocalSpeaker synthesizes an utterance and plays it on this host.
type LocalSpeaker struct {
	synth  Synthesizer
	player Player
}

func NewLocalSpeaker(synth Synthesizer, player Player) *LocalSpeaker {
	return &LocalSpeaker{synth: synth, player: player}
}

func (s *LocalSpeaker) Say(ctx context.Context, req Request) error {
	if s.synth == nil {
		return ErrNoSynthesizer
	}
	if s.player == nil {
		return ErrNoPlayer
	}
	audio, err := s.synth.Synthesize(ctx, req)
	if err != nil {
		return fmt.Errorf("synthesizing: %w", err)
	}
	log.Debug().Str("module", "tts.speaker").Str("voice", req.Voice).Dur("audio", audio.Format.Duration()).Msg("playing locally")
	if err := s.player.Play(ctx, audio.WAV); err != nil {
		return fmt.Errorf("playing: %w", err)
	}
	return nil
}
