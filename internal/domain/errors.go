package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across layers.
var (
	ErrValidation           = errors.New("invalid input")
	ErrEmptyPattern         = fmt.Errorf("empty sequence: %w", ErrValidation)
	ErrInvalidDuration      = fmt.Errorf("duration must be positive: %w", ErrValidation)
	ErrInvalidCount         = fmt.Errorf("count must be at least one: %w", ErrValidation)
	ErrNotFound             = errors.New("not found")
	ErrSessionActive        = errors.New("a session is already running")
	ErrNoSession            = errors.New("no session is running")
	ErrNarrationUnavailable = errors.New("narration unavailable")
)
