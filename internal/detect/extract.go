package detect

import (
	"path/filepath"
	"strings"
)

const hostBinary = "tmux"

// isHost reports whether p is the multiplexer that owns the caller's pane.
func isHost(p Process) bool {
	if strings.HasPrefix(p.Comm, hostBinary) {
		return true
	}
	if len(p.Args) == 0 {
		return false
	}
	return strings.HasPrefix(filepath.Base(p.Args[0]), hostBinary)
}

// sessionOf pulls the session name out of a host process: the target flag
// first, then the new-session flag, then a "(NAME)" suffix on the display
// name.
func sessionOf(p Process) (string, bool) {
	if name, ok := flagValue(p.Args, "-t"); ok {
		return name, true
	}
	if name, ok := flagValue(p.Args, "-s"); ok {
		return name, true
	}
	display := strings.Join(p.Args, " ")
	if display == "" {
		display = p.Comm
	}
	return parenSuffix(display)
}

// flagValue finds flag in args as either "-t NAME" or "-tNAME".
func flagValue(args []string, flag string) (string, bool) {
	for i, a := range args {
		if a == flag {
			if i+1 < len(args) && args[i+1] != "" {
				return strings.TrimPrefix(args[i+1], "="), true
			}
			return "", false
		}
		if len(a) > len(flag) && strings.HasPrefix(a, flag) {
			return strings.TrimPrefix(a[len(flag):], "="), true
		}
	}
	return "", false
}

// parenSuffix extracts NAME from a display name such as
// "tmux: server (NAME)".
func parenSuffix(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, ")") {
		return "", false
	}
	open := strings.LastIndexByte(s, '(')
	if open < 0 {
		return "", false
	}
	name := strings.TrimSpace(s[open+1 : len(s)-1])
	return name, name != ""
}
