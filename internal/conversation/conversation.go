// Package conversation holds the short question history a caller sends with
// each request. Turns are never persisted server-side.
package conversation

import "strings"

// MaxTurns bounds the history carried into one request.
const MaxTurns = 4

type Turn struct {
	Question string `json:"question"`
	SQL      string `json:"sql,omitempty"`
	Summary  string `json:"summary"`
}

// Window returns the newest MaxTurns turns, oldest first.
func Window(turns []Turn) []Turn {
	if len(turns) <= MaxTurns {
		return turns
	}
	return turns[len(turns)-MaxTurns:]
}

// Previous returns the most recent turn. Only its SQL is reused for
// follow-up questions.
func Previous(turns []Turn) (Turn, bool) {
	if len(turns) == 0 {
		return Turn{}, false
	}
	return turns[len(turns)-1], true
}

// PreviousSQL returns the most recent turn's SQL, if any.
func PreviousSQL(turns []Turn) string {
	last, ok := Previous(turns)
	if !ok {
		return ""
	}
	return strings.TrimSpace(last.SQL)
}
