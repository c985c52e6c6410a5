package conversation

import "strings"

// HandoverAction is the assistant's declared next step regarding escalation.
type HandoverAction string

const (
	HandoverNone    HandoverAction = "none"
	HandoverAsk     HandoverAction = "ask"
	HandoverConfirm HandoverAction = "confirm"
)

// NormalizeHandover maps an arbitrary input value onto the closed action set.
// Anything that is not "ask" or "confirm" (after trim/lowercase) is "none".
func NormalizeHandover(raw string) HandoverAction {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "confirm":
		return HandoverConfirm
	case "ask":
		return HandoverAsk
	default:
		return HandoverNone
	}
}

// Decision is the normalized outcome of one assistant invocation. It is
// transient: only its effects are persisted.
type Decision struct {
	Reply                string
	Handover             HandoverAction
	AgentPrompt          string
	ReservationConfirmed bool
	Details              map[string]any
}
