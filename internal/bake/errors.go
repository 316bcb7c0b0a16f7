package bake

import "errors"

// Bake errors. Every abort wraps exactly one of these with context naming
// the source, capability or path involved.
var (
	ErrNoSourceSelected    = errors.New("no source selected")
	ErrMissingCapability   = errors.New("missing capability")
	ErrOutputAlreadyExists = errors.New("output already exists")
	ErrEmptyBakeResult     = errors.New("bake produced no frames")
	ErrPersistence         = errors.New("persisting frame failed")
	ErrInvalidSampleSpec   = errors.New("invalid sample spec")
	ErrCancelled           = errors.New("bake cancelled")
)
