package domain

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned when the breaker short-circuits a call while
// open. The downstream is never invoked.
var ErrCircuitOpen = errors.New("circuit breaker open")

// InjectedError is a simulated downstream failure. It is surfaced to callers
// exactly like a real error would be; nothing downstream of the injector may
// distinguish chaos from reality.
type InjectedError struct {
	Call string
	Kind FailureKind
}

func (e *InjectedError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Call, e.Kind, e.Kind.StatusCode())
}

// AsInjected unwraps err into an *InjectedError, if it is one.
func AsInjected(err error) (*InjectedError, bool) {
	var inj *InjectedError
	if errors.As(err, &inj) {
		return inj, true
	}
	return nil, false
}

// PersistenceError wraps a failure to read or write a backing document.
// Load degrades to an empty store instead of crashing the caller; Save
// failures must leave the previous document intact.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("playbook %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
