// Package speech provides narration for practice routines: Azure
// text-to-speech, oto playback, a phase-boundary chime and whisper-based
// voice commands.
package speech

import (
	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// Compile-time interface check.
var _ domain.Narrator = (*NoOp)(nil)

// NoOp is a narrator that only logs. Used when voice is disabled or the
// audio device is unavailable.
type NoOp struct {
	log *logger.Logger
}

// NewNoOp creates a silent narrator.
func NewNoOp(log *logger.Logger) *NoOp {
	return &NoOp{log: log}
}

// Speak logs the text it would have said.
func (n *NoOp) Speak(text string) error {
	n.log.Debug("speech no-op: would say %q", text)
	return nil
}

// Cancel does nothing.
func (n *NoOp) Cancel() {}
