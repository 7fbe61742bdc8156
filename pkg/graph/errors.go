package graph

import "errors"

// Sentinel errors for knowledge graph operations. Errors returned by the
// graph wrap these, so use errors.Is to test for them.
var (
	// ErrCapacityExceeded is returned when an add would push the entity or
	// relationship count past its configured maximum. The check happens
	// before insertion, so no state changes.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrEntityNotFound is returned when a relationship references a missing
	// endpoint or an update targets a missing entity.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrDuplicateEntity is returned by UpdateEntity when deduplication is
	// enabled and the new (name, type) pair already belongs to another entity.
	ErrDuplicateEntity = errors.New("duplicate entity")

	// ErrInvalidData is returned when a descriptor fails validation.
	ErrInvalidData = errors.New("invalid data")

	// ErrDisabled is returned by mutating operations on a graph whose
	// configuration has Enabled set to false.
	ErrDisabled = errors.New("knowledge graph disabled")
)
