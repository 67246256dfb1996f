package jarcache

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform is returned for platform names outside the closed set.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrVersionNotFound is returned when origin discovery cannot locate the
	// requested version.
	ErrVersionNotFound = errors.New("version not found")

	// ErrMetadataMalformed is returned when an origin document decodes but is
	// missing the fields the resolver needs.
	ErrMetadataMalformed = errors.New("origin metadata malformed")

	// ErrUnavailable is the caller-visible failure for anything that prevented
	// the artifact from being resolved or transferred. It maps to "not found"
	// at the HTTP boundary, never to a server error.
	ErrUnavailable = errors.New("artifact unavailable")
)

// StoreError marks object-store failures that must not be treated as a cache
// miss: the artifact may well exist, the store just could not answer.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("object store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
