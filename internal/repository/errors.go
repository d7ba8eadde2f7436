// Package repository holds the record store implementations: MySQL
// repositories composed into SQLStore, and MemoryStore for development and
// tests.  Both report the sentinel errors below so that the engine and the
// handlers can tell failure modes apart.
package repository

import "errors"

// ErrNotFound is returned when a looked-up row does not exist, or when a
// compare-and-swap update finds the row no longer in the expected state.
// The sweeps treat it as a benign no-op; handlers translate it to 404.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when creating a user with an email that is
// already registered.
var ErrEmailExists = errors.New("email already exists")
