package domain

import "errors"

var (
	// ErrNotFound covers unknown order, rider or tracking code lookups.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition rejects backward or skipping status changes.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrRiderNotAvailable rejects assignment of a rider that is not online.
	ErrRiderNotAvailable = errors.New("rider not available")
	// ErrUnauthorized refuses a room join without a valid capability token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict covers duplicate ids and tracking-code collisions.
	ErrConflict = errors.New("conflict")
)
