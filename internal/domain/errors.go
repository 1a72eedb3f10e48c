package domain

import (
	"errors"
	"strings"
)

var (
	// ErrJobNotFound is returned when no record matches a job_id (or its numeric alias)
	ErrJobNotFound = errors.New("job not found")

	// ErrConfiguration marks failures caused by missing credentials or settings.
	// They are fatal to an ingestion run.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransport marks failures talking to the mail source or the classifier,
	// including malformed responses.
	ErrTransport = errors.New("transport error")

	// ErrValidation marks a candidate record that failed the required-field gate
	ErrValidation = errors.New("validation error")

	// ErrInvalidRequest is returned when an ingestion request message cannot be decoded
	ErrInvalidRequest = errors.New("invalid ingestion request")

	// ErrRunInProgress is returned when another worker holds the ingestion lock
	ErrRunInProgress = errors.New("ingestion run already in progress")
)

// ConfigurationError wraps a configuration problem with the component that raised it
type ConfigurationError struct {
	Component string
	Err       error
}

func (e *ConfigurationError) Error() string {
	return e.Component + ": " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() []error {
	return []error{ErrConfiguration, e.Err}
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(component string, err error) error {
	return &ConfigurationError{Component: component, Err: err}
}

// TransportError wraps a failed or malformed exchange with a collaborator
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// NewTransportError creates a new TransportError
func NewTransportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// ValidationError lists the required fields a candidate record is missing
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
