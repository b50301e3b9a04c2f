package core

import (
	"encoding/base64"
	"encoding/json"
)

const (
	EventOutput       = "output"
	EventRoomLocked   = "room_locked"
	EventRoomUnlocked = "room_unlocked"
	EventTTSStart     = "tts_start"
	EventAudio        = "audio"

	EventLockGranted = "lock_granted"
	EventLockDenied  = "lock_denied"
	EventPong        = "pong"
	EventError       = "error"
)

// Event is the outbound wire shape shared by every server-originated frame.
type Event struct {
	Type  string `json:"type"`
	Data  string `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func (e Event) Frame() Frame {
	// Event has only string fields; Marshal cannot fail.
	b, _ := json.Marshal(e)
	return b
}

func EventFrame(typ string) Frame {
	return Event{Type: typ}.Frame()
}

// OutputFrame keeps "data" even when the snapshot is empty so clients can
// clear their view.
func OutputFrame(text string) Frame {
	b, _ := json.Marshal(struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}{EventOutput, text})
	return b
}

func AudioFrame(wav []byte) Frame {
	return Event{Type: EventAudio, Data: base64.StdEncoding.EncodeToString(wav)}.Frame()
}

func ErrorFrame(msg string) Frame {
	return Event{Type: EventError, Error: msg}.Frame()
}
