package domain

import (
	"fmt"
	"time"
)

// TimeLayout is the minute-resolution timestamp used in journal rows.
const TimeLayout = "2006-01-02 15:04"

// Rating bounds for self-assessed sessions. Zero means unrated.
const (
	MinRating = 1
	MaxRating = 5
)

// Manual entry duration bounds, in seconds.
const (
	MinEntrySeconds = 10
	MaxEntrySeconds = 3600
)

// Entry is one row of the practice journal.
type Entry struct {
	Time        time.Time
	Module      string
	DurationSec int
	Notes       string
	Rating      int
}

// Validate checks a manually recorded entry.
func (e Entry) Validate() error {
	if e.Module == "" {
		return fmt.Errorf("module is required: %w", ErrValidation)
	}
	if e.DurationSec < MinEntrySeconds || e.DurationSec > MaxEntrySeconds {
		return fmt.Errorf("duration %ds outside %d-%d: %w", e.DurationSec, MinEntrySeconds, MaxEntrySeconds, ErrValidation)
	}
	if e.Rating != 0 && (e.Rating < MinRating || e.Rating > MaxRating) {
		return fmt.Errorf("rating %d outside %d-%d: %w", e.Rating, MinRating, MaxRating, ErrValidation)
	}
	return nil
}
