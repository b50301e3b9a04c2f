package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/core"
	"github.com/dkeye/agentvoice/internal/domain"
	"github.com/dkeye/agentvoice/internal/tts"
)

// RoomSpeaker is the in-process side of TTS delivery: it synthesizes with
// the room's voice settings and hands audio to the room's clients or to
// this host's speaker. The HTTP API and the in-process router both use it.
type RoomSpeaker struct {
	rooms *RoomRegistry
	mic   *MicLock
	synth tts.Synthesizer
	local *tts.LocalSpeaker
}

func NewRoomSpeaker(rooms *RoomRegistry, mic *MicLock, synth tts.Synthesizer, local *tts.LocalSpeaker) *RoomSpeaker {
	return &RoomSpeaker{rooms: rooms, mic: mic, synth: synth, local: local}
}

func (s *RoomSpeaker) HasConnections(_ context.Context, room domain.RoomName) (bool, error) {
	return s.rooms.HasConnections(room), nil
}

// Broadcast sends tts_start followed by the audio to every client of the
// room. It fails when nobody received the audio.
func (s *RoomSpeaker) Broadcast(ctx context.Context, name domain.RoomName, text, voice string) error {
	room, ok := s.rooms.Lookup(name)
	if !ok || !room.HasClients() {
		return ErrNoListeners
	}
	if s.synth == nil {
		return tts.ErrNoSynthesizer
	}
	audio, err := s.synth.Synthesize(ctx, s.request(ctx, name, text, voice))
	if err != nil {
		return fmt.Errorf("synthesizing for %q: %w", name, err)
	}

	s.rooms.HandleDropped(room, room.Broadcast("", core.EventFrame(core.EventTTSStart)))
	res := room.Broadcast("", core.AudioFrame(audio.WAV))
	s.rooms.HandleDropped(room, res)
	if res.SendTo == 0 {
		return ErrNoListeners
	}
	log.Info().Str("module", "app.speaker").Str("room", string(name)).Int("sent_to", res.SendTo).Dur("audio", audio.Format.Duration()).Msg("speech broadcast")
	return nil
}

// LocalSpeak plays the utterance on this host.
func (s *RoomSpeaker) LocalSpeak(ctx context.Context, name domain.RoomName, text, voice string) error {
	if s.local == nil {
		return tts.ErrNoPlayer
	}
	return s.local.Say(ctx, s.request(ctx, name, text, voice))
}

func (s *RoomSpeaker) ReleaseMic(_ context.Context, name domain.RoomName) error {
	s.mic.Release(name)
	return nil
}

// Say is the room-less path straight to the synthesis backend.
func (s *RoomSpeaker) Say(ctx context.Context, req tts.Request) error {
	if s.local == nil {
		return tts.ErrNoPlayer
	}
	return s.local.Say(ctx, req)
}

func (s *RoomSpeaker) Voices(ctx context.Context) ([]string, error) {
	if s.synth == nil {
		return nil, tts.ErrNoSynthesizer
	}
	return s.synth.Voices(ctx)
}

// request fills in the room's voice settings; an explicit voice wins.
func (s *RoomSpeaker) request(ctx context.Context, name domain.RoomName, text, voice string) tts.Request {
	cfg := s.rooms.Config(ctx, name)
	if voice == "" {
		voice = cfg.Voice
	}
	return tts.Request{Text: text, Voice: voice, Exaggeration: cfg.Exaggeration, CFGWeight: cfg.CFGWeight}
}
