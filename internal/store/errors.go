package store

import "errors"

// Store errors. Lookups of absent keys are not errors: they return nil.
var (
	// ErrInconsistentDatabase reports two records that must agree but do not.
	ErrInconsistentDatabase = errors.New("inconsistent database")
	// ErrVersionMismatch reports a persisted schema version other than the
	// one this build understands. There is no implicit migration.
	ErrVersionMismatch = errors.New("database version mismatch")
	// ErrInvalidArgument reports a malformed argument, raised before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDuplicateKey reports a save of an already known address or token.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrAddressNotLoaded reports that the current address has not been
	// derived and saved yet.
	ErrAddressNotLoaded = errors.New("current address is not loaded")
)
