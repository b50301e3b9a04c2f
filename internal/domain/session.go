package domain

import "strings"

// SessionName identifies a backend session, optionally qualified with the
// machine that hosts it as name@machine.
type SessionName string

func JoinSession(name, machine string) SessionName {
	if machine == "" {
		return SessionName(name)
	}
	return SessionName(name + "@" + machine)
}

// Split returns the bare session name and the machine id, if any.
func (s SessionName) Split() (name, machine string) {
	i := strings.LastIndexByte(string(s), '@')
	if i < 0 {
		return string(s), ""
	}
	return string(s[:i]), string(s[i+1:])
}

// Room maps a session back to the room of the same name.
func (s SessionName) Room() RoomName {
	name, _ := s.Split()
	return RoomName(name)
}
