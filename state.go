// SPDX-License-Identifier: Apache-2.0

package sasl

import "fmt"

// Role distinguishes the two ends of a negotiation.
type Role int

const (
	RoleInitiator Role = iota
	RoleAcceptor
)

func (r Role) String() string {
	if r == RoleAcceptor {
		return "acceptor"
	}
	return "initiator"
}

// State is the lifecycle state of a negotiation.
type State int

const (
	StateInitial State = iota
	StateInProgress
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateInProgress:
		return "InProgress"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

type event int

const (
	evStep event = iota
	evComplete
	evFail
	evDispose
)

// next is the transition function.  Complete and Failed are terminal, and
// a context cannot complete without first being in progress.
func (s State) next(ev event) State {
	switch s {
	case StateComplete, StateFailed:
		return s
	case StateInitial:
		if ev == evStep {
			return StateInProgress
		}
		return StateFailed
	case StateInProgress:
		switch ev {
		case evStep:
			return StateInProgress
		case evComplete:
			return StateComplete
		}
		return StateFailed
	}

	return StateFailed
}
