package timer

import (
	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// Countdown shows a single held value ticking down once per second, then
// reports completion right after zero is displayed. It has no narration of
// its own.
type Countdown struct {
	seq *Sequencer
}

// NewCountdown creates a countdown over the given display.
func NewCountdown(display domain.Display, log *logger.Logger, opts ...Option) *Countdown {
	return &Countdown{seq: New(nil, display, log, opts...)}
}

// Start counts down from seconds. Starting while running is a no-op.
func (c *Countdown) Start(label string, seconds int) error {
	p := domain.Pattern{
		ID:   "countdown",
		Name: label,
		Phases: []domain.Phase{
			{Label: label, Seconds: seconds, Visual: domain.VisualHold},
		},
	}
	return c.seq.Start(p, 1)
}

// Stop cancels the countdown and resets the display.
func (c *Countdown) Stop() { c.seq.Stop() }

// Running reports whether the countdown is active.
func (c *Countdown) Running() bool { return c.seq.Running() }
