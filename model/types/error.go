package types

import (
	"errors"
	"fmt"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrMethodNotFound  = errors.New("method not found")
	ErrInvalidPayload  = errors.New("invalid payload")
)

// NewServiceNotFoundError reports an unregistered service name.
func NewServiceNotFoundError(name string) error {
	return fmt.Errorf("%w: %v", ErrServiceNotFound, name)
}

// NewMethodNotFoundError reports an unknown method name.
func NewMethodNotFoundError(name string) error {
	return fmt.Errorf("%w: %v", ErrMethodNotFound, name)
}

// NewInvalidInputError reports an input payload of the wrong type.
func NewInvalidInputError(in interface{}) error {
	return fmt.Errorf("%w: input %T", ErrInvalidPayload, in)
}

// NewInvalidOutputError reports an output payload of the wrong type.
func NewInvalidOutputError(out interface{}) error {
	return fmt.Errorf("%w: output %T", ErrInvalidPayload, out)
}
