// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package zhtperr classifies every error that crosses a subsystem boundary
// into one of a small set of kinds, so callers (the mesh handler, the CLI,
// the consensus coordinator) can decide whether to retry, disconnect a
// peer, or surface the failure to an operator without inspecting error
// strings. This mirrors the teacher's config/errors.go convention of a
// handful of sentinel errors per package, lifted one level so it applies
// uniformly across packages; a dedicated error-kinds library was not
// available in the reference corpus, so this package wraps the standard
// library's errors/fmt (see DESIGN.md).
package zhtperr

import (
	"errors"
	"fmt"
)

// Kind classifies the nature of a failure, independent of which subsystem
// raised it.
type Kind uint8

const (
	// InvalidInput: the caller supplied data that fails a validation rule
	// (malformed DID, domain name regex, negative stake). Never retry
	// without correcting the input.
	InvalidInput Kind = iota
	// AuthFailure: a signature, proof, or credential failed verification.
	AuthFailure
	// RateLimited: the request was rejected by a rate limiter; the caller
	// may retry after backing off.
	RateLimited
	// Conflict: a compare-and-swap or uniqueness constraint lost a race
	// (domain already registered, manifest CID stale). The caller should
	// re-read current state before retrying.
	Conflict
	// NotFound: the referenced entity does not exist.
	NotFound
	// Transient: an I/O or network failure that is likely to succeed on
	// retry (storage timeout, peer unreachable).
	Transient
	// Fatal: an invariant was violated; the process should not continue
	// operating on the affected state.
	Fatal
)

// String returns the kind's lowercase name.
func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case AuthFailure:
		return "auth_failure"
	case RateLimited:
		return "rate_limited"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified error carrying the component that raised it.
type Error struct {
	Kind      Kind
	Component string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}

// Newf builds a classified error from a format string.
func Newf(kind Kind, component, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Component: component, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind of err if it (or something it wraps) is a
// *Error; otherwise it returns Fatal, the conservative default for an
// unclassified failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Fatal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether a caller should attempt err's operation again,
// true only for Transient and RateLimited.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Transient, RateLimited:
		return true
	default:
		return false
	}
}
