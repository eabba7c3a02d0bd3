// Package writeprotect implements the process-wide flag that vetoes
// every mutating call to the Notion adapter (§4.A, P8). It is modeled
// as an explicit object threaded through constructors rather than a
// package-level singleton (§9).
package writeprotect

import "errors"

// ErrWriteProtected is returned by any mutating Notion adapter method
// while the flag is engaged.
var ErrWriteProtected = errors.New("write-protected: mutating call vetoed")

// Flag is a process-wide write-protection switch. The zero value is
// protected (default on, §6.5).
type Flag struct {
	protected bool
	set       bool
}

// New returns a Flag set to the given protection state.
func New(protected bool) *Flag {
	return &Flag{protected: protected, set: true}
}

// Protected reports whether mutating calls are currently vetoed.
// An unset Flag defaults to protected — callers must construct one
// with New to intentionally disable protection.
func (f *Flag) Protected() bool {
	if f == nil || !f.set {
		return true
	}
	return f.protected
}

// Guard returns ErrWriteProtected if the flag is engaged, nil otherwise.
// Every mutating adapter method calls this first, regardless of caller
// intent.
func (f *Flag) Guard() error {
	if f.Protected() {
		return ErrWriteProtected
	}
	return nil
}
