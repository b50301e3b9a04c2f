package session

import "strings"

// tailString returns the last n lines of s, matching tail -n semantics:
// a trailing newline terminates the last line rather than starting one.
func tailString(s string, n int) string {
	if len(s) == 0 || n <= 0 {
		return s
	}
	searchFrom := len(s) - 1
	if s[searchFrom] == '\n' {
		searchFrom--
	}
	count := 0
	for i := searchFrom; i >= 0; i-- {
		if s[i] == '\n' {
			count++
			if count == n {
				return s[i+1:]
			}
		}
	}
	return s
}

// trimPane drops the blank rows tmux pads the bottom of a pane with.
func trimPane(s string) string {
	return strings.TrimRight(s, " \n")
}

// shellQuote wraps s for the remote shell ssh hands its arguments to.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
