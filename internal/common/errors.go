// Package common defines shared constants and sentinel errors used across
// client and device layers of mclink. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Link-level errors (command execution flow control).
	ErrTimeout      = errors.New("command timed out")
	ErrDisconnected = errors.New("link disconnected")
	ErrNotReady     = errors.New("link not ready")

	// Delivery errors (terminal, per-message).
	ErrDeliveryFailed = errors.New("delivery failed after all attempts")
)
