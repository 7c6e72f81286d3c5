package extension

import "errors"

var (
	ErrMissingAttribute      = errors.New("missing attribute")
	ErrUnknownExtensionPoint = errors.New("unknown extension point")
	ErrIncompatibleType      = errors.New("executable extension has incompatible type")
	ErrInvalidXPath          = errors.New("invalid xpath expression")
	ErrNoClassLoader         = errors.New("no class loader configured")
)
