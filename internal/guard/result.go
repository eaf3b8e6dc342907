// Package guard holds the outcome types shared by the state machines: a
// structured list of blocking errors and non-blocking warnings, and the error
// taxonomy callers use to tell validation, authorization, transition, and
// consistency failures apart.
package guard

import (
	"fmt"
	"strings"
)

// Result collects the outcome of a transition guard. A transition may only
// proceed when Errors is empty; Warnings are surfaced but never block.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Errorf appends a blocking error.
func (r *Result) Errorf(format string, a ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, a...))
}

// Warnf appends a non-blocking warning.
func (r *Result) Warnf(format string, a ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, a...))
}

// Blocked reports whether any blocking error was recorded.
func (r *Result) Blocked() bool {
	return len(r.Errors) > 0
}

// Err returns a *BlockedError when the result is blocked, nil otherwise.
func (r *Result) Err() error {
	if !r.Blocked() {
		return nil
	}
	return &BlockedError{Result: *r}
}

// BlockedError is returned when a guard refuses a transition.
type BlockedError struct {
	Result Result
}

func (e *BlockedError) Error() string {
	return "transition blocked: " + strings.Join(e.Result.Errors, "; ")
}

// Is lets errors.Is(err, ErrBlocked) match any BlockedError.
func (e *BlockedError) Is(target error) bool {
	return target == ErrBlocked
}
