package domain

// State identifies where a terminal session is in the card lifecycle.
type State string

const (
	// StateIdle means no card is in the terminal.
	StateIdle State = "IDLE"
	// StateCardInserted means a card is in the terminal but the PIN has not
	// been verified yet.
	StateCardInserted State = "CARD_INSERTED"
	// StateAuthenticated means the PIN has been verified and transactions
	// are allowed.
	StateAuthenticated State = "AUTHENTICATED"
)

// validTransitions lists the states reachable from each state. Inserting a
// card is the only way out of idle, and ejecting (voluntarily or after an
// incorrect PIN) is the only way back.
var validTransitions = map[State][]State{
	StateIdle:          {StateCardInserted},
	StateCardInserted:  {StateAuthenticated, StateIdle},
	StateAuthenticated: {StateIdle},
}

// CanTransition reports whether moving from one state to another is allowed.
func CanTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Display returns the human-readable form of a state used in notifier
// messages.
func (s State) Display() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCardInserted:
		return "card inserted"
	case StateAuthenticated:
		return "authenticated"
	default:
		return string(s)
	}
}
