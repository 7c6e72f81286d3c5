package framework

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidState      = errors.New("invalid bundle state")
	ErrUnresolved        = errors.New("bundle cannot be resolved")
	ErrMissingDependency = errors.New("missing dependency")
	ErrDependencyCycle   = errors.New("dependency cycle")
	ErrLibraryLoad       = errors.New("library cannot be loaded")
	ErrClassNotFound     = errors.New("class not found")
	ErrActivatorFailed   = errors.New("activator failed")
	ErrBundleNotFound    = errors.New("bundle not found")
	ErrLifecycleBusy     = errors.New("bundle lifecycle busy")
)

// StateError reports an operation attempted in the wrong lifecycle state.
type StateError struct {
	Bundle string
	State  State
	Op     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s bundle %s in state %s", e.Op, e.Bundle, e.State)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// ResolutionError reports why a bundle could not be resolved. Exactly one of
// Missing and Cycle is set.
type ResolutionError struct {
	Bundle  string
	Missing string
	// Chain leads from Bundle to the bundle requiring Missing
	Chain []string
	// Cycle starts and ends with the same bundle
	Cycle []string
}

func (e *ResolutionError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("cannot resolve %s: dependency cycle %s", e.Bundle, strings.Join(e.Cycle, " -> "))
	}
	if len(e.Chain) > 1 {
		return fmt.Sprintf("cannot resolve %s: missing dependency %s (required via %s)",
			e.Bundle, e.Missing, strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("cannot resolve %s: missing dependency %s", e.Bundle, e.Missing)
}

func (e *ResolutionError) Unwrap() []error {
	if len(e.Cycle) > 0 {
		return []error{ErrUnresolved, ErrDependencyCycle}
	}
	return []error{ErrUnresolved, ErrMissingDependency}
}

// LibraryError reports a failure to load a library or instantiate a class
// from it.
type LibraryError struct {
	Bundle  string
	Library string
	Class   string
	Err     error
}

func (e *LibraryError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("bundle %s: cannot create %s from library %s: %v", e.Bundle, e.Class, e.Library, e.Err)
	}
	return fmt.Sprintf("bundle %s: cannot load library %s: %v", e.Bundle, e.Library, e.Err)
}

func (e *LibraryError) Unwrap() error {
	return e.Err
}
