package router

import (
	"errors"
	"fmt"
	"time"
)

// State of one payment attempt.
type State byte

const (
	StateCreated State = iota
	StateBuilt
	StateSigned
	StateSubmitted
	StateVerified
	StateSettled
	StateRejected
	StateSettlementFailed
	StateExpired
)

var ErrInvalidTransition = errors.New("invalid payment state transition")

var stateNames = map[State]string{
	StateCreated:          "created",
	StateBuilt:            "built",
	StateSigned:           "signed",
	StateSubmitted:        "submitted",
	StateVerified:         "verified",
	StateSettled:          "settled",
	StateRejected:         "rejected",
	StateSettlementFailed: "settlement_failed",
	StateExpired:          "expired",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", s)
}

// Terminal reports whether the attempt can never leave this state.
func (s State) Terminal() bool {
	switch s {
	case StateSettled, StateRejected, StateSettlementFailed, StateExpired:
		return true
	}
	return false
}

var transitions = map[State][]State{
	StateCreated:   {StateBuilt},
	StateBuilt:     {StateSigned},
	StateSigned:    {StateSubmitted},
	StateSubmitted: {StateVerified, StateRejected},
	StateVerified:  {StateSettled, StateSettlementFailed},
}

// Attempt tracks one payment attempt through its lifecycle. Any non-terminal
// state transitions to expired once the authorization's ValidBefore elapses.
type Attempt struct {
	state       State
	validBefore int64
}

// NewAttempt starts an attempt in the created state.
func NewAttempt() *Attempt {
	return &Attempt{state: StateCreated}
}

// State returns the attempt's current state.
func (a *Attempt) State() State {
	return a.state
}

// SetValidBefore arms the expiry deadline, taken from the built authorization.
func (a *Attempt) SetValidBefore(validBefore int64) {
	a.validBefore = validBefore
}

// To advances the attempt. Moving out of a terminal state or along an edge the
// lifecycle does not define is a programming error.
func (a *Attempt) To(next State) error {
	if next == StateExpired {
		if a.state.Terminal() {
			return errors.Join(ErrInvalidTransition, fmt.Errorf("%s is terminal", a.state))
		}
		a.state = StateExpired
		return nil
	}
	for _, allowed := range transitions[a.state] {
		if next == allowed {
			a.state = next
			return nil
		}
	}
	return errors.Join(ErrInvalidTransition, fmt.Errorf("%s to %s", a.state, next))
}

// ExpireIfDue moves a non-terminal attempt to expired when the armed deadline
// has elapsed. Reports whether the attempt is now expired.
func (a *Attempt) ExpireIfDue(now time.Time) bool {
	if a.state.Terminal() {
		return a.state == StateExpired
	}
	if a.validBefore != 0 && now.Unix() >= a.validBefore {
		a.state = StateExpired
		return true
	}
	return false
}
