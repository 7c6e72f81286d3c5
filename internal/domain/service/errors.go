package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFilter    = errors.New("invalid filter")
	ErrNotAnInstance    = errors.New("service object does not implement interface")
	ErrNilService       = errors.New("service object is nil")
	ErrUnknownInterface = errors.New("unknown interface name")
	ErrUnregistered     = errors.New("service is unregistered")
)

// FilterError describes a syntax error in a filter expression.
type FilterError struct {
	Filter string
	Pos    int
	Msg    string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid filter %q at offset %d: %s", e.Filter, e.Pos, e.Msg)
}

func (e *FilterError) Unwrap() error {
	return ErrInvalidFilter
}
