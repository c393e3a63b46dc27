// Package apperrors defines the sentinel errors shared across the trader.
package apperrors

import "errors"

var (
	ErrNotConnected     = errors.New("websocket not connected")
	ErrChecksumMismatch = errors.New("checksum verification failed")
	ErrModelUnavailable = errors.New("advisory model unavailable")
	ErrCorruptSnapshot  = errors.New("estimator snapshot invalid")
)
