package domain

import "fmt"

// NotFoundError represents a missing project, version, block or snapshot.
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

// ForbiddenError represents an ownership violation.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

func (e ForbiddenError) Is(target error) bool {
	_, ok := target.(ForbiddenError)
	if ok {
		return true
	}
	_, ok = target.(*ForbiddenError)
	return ok
}

// InvalidInputError represents a malformed request, document or filter.
type InvalidInputError struct {
	Reason string
}

func (e InvalidInputError) Error() string {
	if e.Reason == "" {
		return "invalid input"
	}
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func (e InvalidInputError) Is(target error) bool {
	_, ok := target.(InvalidInputError)
	if ok {
		return true
	}
	_, ok = target.(*InvalidInputError)
	return ok
}

// ConflictError is raised by the store when two writers collide.
type ConflictError struct {
	Resource string
}

func (e ConflictError) Error() string {
	if e.Resource == "" {
		return "conflict"
	}
	return fmt.Sprintf("%s conflict", e.Resource)
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

var (
	ErrNotFound     = NotFoundError{}
	ErrForbidden    = ForbiddenError{}
	ErrInvalidInput = InvalidInputError{}
	ErrConflict     = ConflictError{}
)
