package api

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist server-side.
	// Implementations map their transport's not-found outcome to this sentinel
	// so the core can distinguish absence from failure.
	ErrNotFound = errors.New("api: resource not found")
)
