package domain

import "strings"

// LLMResponseSeparator is the legacy delimiter between a serialized context
// block and the answer text inside old assistant turns. New answers persist
// plain text; the separator survives only in history written by earlier
// deployments.
const LLMResponseSeparator = "__LLM_RESPONSE__"

// HistoryContent returns the usable text of a stored turn, stripping a
// legacy context block when present.
func HistoryContent(content string) string {
	if idx := strings.LastIndex(content, LLMResponseSeparator); idx >= 0 {
		return content[idx+len(LLMResponseSeparator):]
	}
	return content
}

// ValidateTurns enforces the chat message precondition: at least one turn,
// and the most recent turn authored by the user.
func ValidateTurns(turns []Turn) error {
	if len(turns) == 0 {
		return ErrEmptyTurns
	}
	if turns[len(turns)-1].Role != RoleUser {
		return ErrLastTurnNotUser
	}
	return nil
}

// WindowTurns returns at most the last n turns.
func WindowTurns(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
