package models

import "errors"

var (
	// ErrNotFound is returned by the record store when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a compare-and-swap update loses
	// to a concurrent writer.
	ErrVersionConflict = errors.New("version conflict")
	// ErrInvalidTransition is returned when a payment status update would
	// move a payment out of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")
)
