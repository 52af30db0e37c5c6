package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ValidationError represents malformed caller input, rejected before any
// persistence takes place.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	if e.Reason == "" {
		return "invalid input"
	}
	return e.Reason
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

var ErrValidation = ValidationError{}

// ConflictError represents a state-machine precondition violation. The
// caller may retry only after re-reading current state.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string {
	if e.Reason == "" {
		return "conflict"
	}
	return e.Reason
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

var ErrConflict = ConflictError{}

// AuthorizationError represents an actor lacking standing for a transition.
// It is never downgraded to a different error kind.
type AuthorizationError struct {
	Reason string
}

func (e AuthorizationError) Error() string {
	if e.Reason == "" {
		return "not authorized"
	}
	return e.Reason
}

func (e AuthorizationError) Is(target error) bool {
	_, ok := target.(AuthorizationError)
	if ok {
		return true
	}
	_, ok = target.(*AuthorizationError)
	return ok
}

var ErrAuthorization = AuthorizationError{}
