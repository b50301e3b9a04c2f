package domain

import (
	"errors"
	"strings"
)

const MaxRoomNameLen = 64

var (
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
	ErrRoomNameInvalid = errors.New("room name contains forbidden characters")
)

type RoomName string

// ParseRoomName validates a path-derived room name. Room names double as
// tmux session names, so the characters tmux rejects are refused here,
// along with the machine separator.
func ParseRoomName(raw string) (RoomName, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrRoomNameEmpty
	}
	if len(raw) > MaxRoomNameLen {
		return "", ErrRoomNameTooLong
	}
	if strings.ContainsAny(raw, ":./@ \t\n") {
		return "", ErrRoomNameInvalid
	}
	return RoomName(raw), nil
}

// RoomConfig is the persisted per-room record.
type RoomConfig struct {
	Voice        string  `json:"voice"`
	Exaggeration float64 `json:"exaggeration"`
	CFGWeight    float64 `json:"cfg_weight"`
	Machine      string  `json:"machine,omitempty"`
	Path         string  `json:"path,omitempty"`
}

// WithDefaults fills unset fields from d. Zero synthesis parameters count
// as unset.
func (c RoomConfig) WithDefaults(d RoomConfig) RoomConfig {
	if c.Voice == "" {
		c.Voice = d.Voice
	}
	if c.Exaggeration == 0 {
		c.Exaggeration = d.Exaggeration
	}
	if c.CFGWeight == 0 {
		c.CFGWeight = d.CFGWeight
	}
	if c.Machine == "" {
		c.Machine = d.Machine
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	return c
}

// Session returns the backend session that hosts the room's agent.
func (c RoomConfig) Session(name RoomName) SessionName {
	return JoinSession(string(name), c.Machine)
}

// ConfigPatch carries the fields of an update; nil means unchanged.
type ConfigPatch struct {
	Voice        *string  `json:"voice,omitempty"`
	Exaggeration *float64 `json:"exaggeration,omitempty"`
	CFGWeight    *float64 `json:"cfg_weight,omitempty"`
	Machine      *string  `json:"machine,omitempty"`
	Path         *string  `json:"path,omitempty"`
}

func (p ConfigPatch) Empty() bool {
	return p.Voice == nil && p.Exaggeration == nil && p.CFGWeight == nil &&
		p.Machine == nil && p.Path == nil
}

func (c RoomConfig) Apply(p ConfigPatch) RoomConfig {
	if p.Voice != nil {
		c.Voice = *p.Voice
	}
	if p.Exaggeration != nil {
		c.Exaggeration = *p.Exaggeration
	}
	if p.CFGWeight != nil {
		c.CFGWeight = *p.CFGWeight
	}
	if p.Machine != nil {
		c.Machine = *p.Machine
	}
	if p.Path != nil {
		c.Path = *p.Path
	}
	return c
}
