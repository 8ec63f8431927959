package timer

import (
	"time"

	"github.com/hammamikhairi/calmcoach/internal/domain"
)

// Report describes a run that finished on its own.
type Report struct {
	Label   string
	Started time.Time
	Elapsed time.Duration
	Cycles  int // cycles or rounds completed
	Events  int // phases begun or cues announced
}

// Option configures a Sequencer, Caller or Countdown.
type Option func(*settings)

type settings struct {
	clock      Clock
	chimer     domain.Chimer
	onComplete func(Report)
}

func defaultSettings(opts []Option) settings {
	s := settings{clock: SystemClock}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(s *settings) {
		s.clock = c
	}
}

// WithChimer plays a tone whenever a phase or cue begins.
func WithChimer(c domain.Chimer) Option {
	return func(s *settings) {
		s.chimer = c
	}
}

// WithCompletion registers the callback fired once per natural finish.
// It is never called for runs ended by Stop.
func WithCompletion(f func(Report)) Option {
	return func(s *settings) {
		s.onComplete = f
	}
}

// nopDisplay is used when no display is wired.
type nopDisplay struct{}

func (nopDisplay) Update(string, domain.Visual, int) {}
func (nopDisplay) Reset()                            {}
