package authz

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPermissionDenied is matched by every *PermissionError.
	ErrPermissionDenied = errors.New("authz: permission denied")
	// ErrMalformedRule indicates a permission token that cannot be parsed.
	ErrMalformedRule = errors.New("authz: malformed rule")
	// ErrUnknownEntity indicates an entity kind outside the registry.
	ErrUnknownEntity = errors.New("authz: unknown entity kind")
	// ErrUnknownOwner is returned by an OwnerStore when no user carries the
	// code. It means "not owned"; any other store error fails the decision.
	ErrUnknownOwner = errors.New("authz: unknown owner code")

	errNoOwnerStore = fmt.Errorf("%w: no owner store configured", ErrUnknownOwner)
)

// PermissionError is the hard-gate denial returned by Require.
type PermissionError struct {
	Message string
	Status  int
}

// NewPermissionError builds a denial carrying HTTP 403.
func NewPermissionError(message string) *PermissionError {
	return &PermissionError{Message: message, Status: http.StatusForbidden}
}

func (e *PermissionError) Error() string {
	return e.Message
}

// Is lets errors.Is match ErrPermissionDenied.
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// HTTPStatus returns the status the outer layer should respond with.
func (e *PermissionError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusForbidden
	}
	return e.Status
}

func defaultDenialMessage(module, action string) string {
	return fmt.Sprintf("You do not have permission to %s %s.", action, module)
}
