/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package numbers

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration = errors.New("invalid match configuration")
	ErrInvalidTransition    = errors.New("invalid state transition")
)

// ConfigError describes which MatchConfig field was rejected.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrInvalidConfiguration, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// TransitionError is returned when an operation is not allowed in the
// engine's current state. It indicates a caller bug.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s not allowed while %s", ErrInvalidTransition, e.Op, e.State)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
