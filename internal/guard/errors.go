package guard

import (
	"errors"
	"fmt"
)

var (
	// ErrBlocked matches every *BlockedError.
	ErrBlocked = errors.New("transition blocked")

	// ErrForbidden means the actor lacks a permission the operation needs.
	ErrForbidden = errors.New("forbidden")

	// ErrIllegalTransition means the action does not apply to the current state.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrInconsistent means the request contradicts the stored data, such as a
	// role from another project or a non-positive hour count.
	ErrInconsistent = errors.New("inconsistent request")
)

// IllegalTransitionError names the state and action that were refused.
type IllegalTransitionError struct {
	Entity string
	From   string
	Action string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: cannot %s %s in state %s", e.Action, e.Entity, e.From)
}

func (e *IllegalTransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// Illegal builds an IllegalTransitionError.
func Illegal(entity, from, action string) error {
	return &IllegalTransitionError{Entity: entity, From: from, Action: action}
}

// Forbidden wraps ErrForbidden with the missing permission and object.
func Forbidden(actor, perm, object string) error {
	return fmt.Errorf("%w: %s lacks %s on %s", ErrForbidden, actor, perm, object)
}

// Inconsistent wraps ErrInconsistent with a message.
func Inconsistent(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistent, fmt.Sprintf(format, a...))
}
