package domain

import "errors"

var (
	// ErrEntityNotFound is returned when a required entity is absent from the store
	ErrEntityNotFound = errors.New("entity not found")

	// ErrUnknownEvent is returned when a log does not match any known event signature
	ErrUnknownEvent = errors.New("unknown event signature")

	// ErrMalformedEvent is returned when a log matches a signature but cannot be decoded
	ErrMalformedEvent = errors.New("malformed event")

	// ErrInvalidNetwork is returned when the network configuration is incomplete
	ErrInvalidNetwork = errors.New("invalid network configuration")

	// ErrBlockFailed is returned when the events of a block could not be applied
	ErrBlockFailed = errors.New("block failed")
)
