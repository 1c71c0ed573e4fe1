package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUnknownModelKind = errors.New("unknown model kind")
	// ErrModelUnavailable means the kind is supported but its artifact failed to load.
	ErrModelUnavailable = errors.New("model unavailable")
	ErrShape            = errors.New("input shape error")
	ErrInference        = errors.New("inference failed")
	ErrTimeout          = errors.New("forecast timed out")
	ErrStartup          = errors.New("artifact load failed")
)

// ForecastError annotates a sentinel with the model kind and the offending field.
type ForecastError struct {
	Kind  ModelKind
	Code  error
	Field string
	Err   error
}

func NewForecastError(kind ModelKind, code error, field string, err error) *ForecastError {
	return &ForecastError{Kind: kind, Code: code, Field: field, Err: err}
}

// InvalidParam is shorthand for an ErrInvalidParameter on field.
func InvalidParam(kind ModelKind, field, format string, a ...any) *ForecastError {
	return NewForecastError(kind, ErrInvalidParameter, field, fmt.Errorf(format, a...))
}

func (e *ForecastError) Error() string {
	msg := e.Code.Error()
	if e.Kind != "" {
		msg = string(e.Kind) + ": " + msg
	}
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel code so errors.Is(err, ErrShape) works through wrapping.
// An unavailable model is also an unknown kind from the caller's point of view.
func (e *ForecastError) Is(target error) bool {
	if e.Code == target {
		return true
	}
	return e.Code == ErrModelUnavailable && target == ErrUnknownModelKind
}

func (e *ForecastError) Unwrap() error { return e.Err }
