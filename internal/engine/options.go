package engine

import (
	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/timer"
)

// Option configures the engine.
type Option func(*Engine)

// WithNarrator sets the voice used for cues and completion lines.
func WithNarrator(n domain.Narrator) Option {
	return func(e *Engine) {
		e.narrator = n
	}
}

// WithDisplay sets where phases are rendered.
func WithDisplay(d domain.Display) Option {
	return func(e *Engine) {
		e.display = d
	}
}

// WithNotifier sets where completion notices go.
func WithNotifier(n domain.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithChimer plays a tone at each phase boundary.
func WithChimer(c domain.Chimer) Option {
	return func(e *Engine) {
		e.chimer = c
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c timer.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithHistoryLimit caps how many finished sessions the store keeps when
// it supports pruning.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		e.historyLimit = n
	}
}
