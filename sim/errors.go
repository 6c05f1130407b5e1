package sim

import (
	"errors"
	"fmt"
)

// ErrUnhandledEvent is returned by a Handler that has no handling for the
// kind of an event. The component logs and drops such events.
var ErrUnhandledEvent = errors.New("handler not implemented")

// UnhandledEvent wraps ErrUnhandledEvent with the offending kind. Handlers
// return it from the default arm of their kind switch.
func UnhandledEvent(kind EventKind) error {
	return fmt.Errorf("%w for kind %s", ErrUnhandledEvent, kind)
}

// A ConfigurationError reports a mistake in how the simulation is put
// together, such as a duplicated component key or too many endpoints on a
// point-to-point channel. It aborts construction.
type ConfigurationError struct {
	Component string
	Reason    string
}

// NewConfigurationError creates a ConfigurationError for the named component.
func NewConfigurationError(
	component string,
	format string,
	args ...any,
) *ConfigurationError {
	return &ConfigurationError{
		Component: component,
		Reason:    fmt.Sprintf(format, args...),
	}
}

func (e *ConfigurationError) Error() string {
	if e.Component == "" {
		return "configuration error: " + e.Reason
	}

	return "configuration error in " + e.Component + ": " + e.Reason
}

// A HandlerFault is a panic recovered while a handler processed an event.
type HandlerFault struct {
	Kind  EventKind
	Value any
	Stack []byte
}

func (e *HandlerFault) Error() string {
	return fmt.Sprintf("handler for kind %s panicked: %v", e.Kind, e.Value)
}

// Unwrap exposes the panic value if it is an error.
func (e *HandlerFault) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
