package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoomName(t *testing.T) {
	name, err := ParseRoomName("  demo ")
	require.NoError(t, err)
	assert.Equal(t, RoomName("demo"), name)

	_, err = ParseRoomName("")
	assert.ErrorIs(t, err, ErrRoomNameEmpty)

	_, err = ParseRoomName("a.b")
	assert.ErrorIs(t, err, ErrRoomNameInvalid)

	_, err = ParseRoomName("demo@box")
	assert.ErrorIs(t, err, ErrRoomNameInvalid)

	long := make([]byte, MaxRoomNameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = ParseRoomName(string(long))
	assert.ErrorIs(t, err, ErrRoomNameTooLong)
}

func TestRoomConfig_WithDefaults(t *testing.T) {
	defaults := RoomConfig{Voice: "default", Exaggeration: 0.5, CFGWeight: 0.5}

	got := RoomConfig{Voice: "alice", Path: "/srv"}.WithDefaults(defaults)
	assert.Equal(t, RoomConfig{Voice: "alice", Exaggeration: 0.5, CFGWeight: 0.5, Path: "/srv"}, got)

	assert.Equal(t, defaults, RoomConfig{}.WithDefaults(defaults))
}

func TestRoomConfig_Apply(t *testing.T) {
	voice := "bob"
	weight := 0.8
	cfg := RoomConfig{Voice: "alice", Exaggeration: 0.3, CFGWeight: 0.5}

	patch := ConfigPatch{Voice: &voice, CFGWeight: &weight}
	assert.False(t, patch.Empty())
	assert.True(t, ConfigPatch{}.Empty())

	got := cfg.Apply(patch)
	assert.Equal(t, "bob", got.Voice)
	assert.Equal(t, 0.3, got.Exaggeration)
	assert.Equal(t, 0.8, got.CFGWeight)
	assert.Equal(t, "alice", cfg.Voice, "Apply must not mutate the receiver")
}

func TestRoomConfig_Session(t *testing.T) {
	assert.Equal(t, SessionName("demo"), RoomConfig{}.Session("demo"))
	assert.Equal(t, SessionName("demo@gpu1"), RoomConfig{Machine: "gpu1"}.Session("demo"))
}

func TestSessionName_Split(t *testing.T) {
	name, machine := SessionName("demo@gpu1").Split()
	assert.Equal(t, "demo", name)
	assert.Equal(t, "gpu1", machine)

	name, machine = SessionName("demo").Split()
	assert.Equal(t, "demo", name)
	assert.Empty(t, machine)

	assert.Equal(t, RoomName("demo"), SessionName("demo@gpu1").Room())
	assert.Equal(t, SessionName("demo"), JoinSession("demo", ""))
}

func TestRoutingDecision(t *testing.T) {
	d := RoutingDecision{Path: RouteBroadcast, Attempted: RouteBroadcast}
	assert.True(t, d.Delivered())
	assert.Empty(t, d.Reason())

	d = RoutingDecision{Path: RouteNone, Attempted: RouteLocalSpeaker, Err: assert.AnError}
	assert.False(t, d.Delivered())
	assert.Equal(t, assert.AnError.Error(), d.Reason())
}
