package workflow

import "fmt"

// ValidationError indicates a request carried a missing or malformed
// field. It is raised before any store mutation.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return e.Reason
}

// AuthorizationError indicates the acting player is not allowed to
// perform the attempted transition.
type AuthorizationError struct {
	Reason string
}

func (e AuthorizationError) Error() string {
	return e.Reason
}

// PreconditionError indicates the task was not in the state the
// transition requires, including the case where a concurrent transition
// already consumed it.
type PreconditionError struct {
	Reason string
}

func (e PreconditionError) Error() string {
	return e.Reason
}

// NotFoundError indicates a referenced task or player does not exist.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}
