package domain

import "errors"

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownPlayer is returned when an external platform id has no
	// entry in the identity directory.
	ErrUnknownPlayer = errors.New("unknown player identity")
)
