package service

import "errors"

// Sentinel kinds returned by the service.
var (
	ErrNoRoster     = errors.New("no roster in session")
	ErrUnknownField = errors.New("unknown distribution field")
)
