package lifecycle

import (
	"errors"
	"fmt"
)

// ErrPrecondition is the sentinel every PreconditionError matches via
// errors.Is, so callers can branch without inspecting the struct.
var ErrPrecondition = errors.New("lifecycle precondition not met")

// PreconditionError names the action that was refused and the subscription
// state it requires.
type PreconditionError struct {
	Action   Action
	Requires string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s: requires %s", e.Action, e.Requires)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

func preconditionErr(action Action, requires string) error {
	return &PreconditionError{Action: action, Requires: requires}
}
