package types

import (
	"context"
	"reflect"
)

// Signatures lists the methods an action service exposes.
type Signatures []Signature

// Lookup returns the named signature, or nil.
func (s Signatures) Lookup(name string) *Signature {
	for i := range s {
		sig := &s[i]
		if sig.Name == name {
			return sig
		}
	}
	return nil
}

// Names returns method names in declaration order.
func (s Signatures) Names() []string {
	result := make([]string, 0, len(s))
	for _, sig := range s {
		result = append(result, sig.Name)
	}
	return result
}

// Signature describes one method: its payload types and what it does.
type Signature struct {
	Name        string
	Description string
	Input       reflect.Type
	Output      reflect.Type
}

// NewInput allocates a zero input payload for the signature.
func (s *Signature) NewInput() interface{} {
	return newValue(s.Input)
}

// NewOutput allocates a zero output payload for the signature.
func (s *Signature) NewOutput() interface{} {
	return newValue(s.Output)
}

func newValue(t reflect.Type) interface{} {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.New(t).Interface()
}

// Executable runs a method with typed input and output payloads.
type Executable func(ctx context.Context, input, output interface{}) error
