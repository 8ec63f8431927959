package speech

import (
	"context"
	"regexp"
	"strings"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// Compile-time interface check.
var _ domain.Notifier = (*SpeakingNotifier)(nil)

// SpeakingNotifier prints through an inner notifier and also narrates the
// message. Urgent messages cancel the current utterance first.
type SpeakingNotifier struct {
	text     domain.Notifier
	narrator domain.Narrator
	log      *logger.Logger
}

// NewSpeakingNotifier creates a notifier that both prints and speaks.
func NewSpeakingNotifier(text domain.Notifier, narrator domain.Narrator, log *logger.Logger) *SpeakingNotifier {
	return &SpeakingNotifier{
		text:     text,
		narrator: narrator,
		log:      log,
	}
}

// Notify prints the message and speaks it.
func (n *SpeakingNotifier) Notify(ctx context.Context, message string) error {
	if err := n.text.Notify(ctx, message); err != nil {
		return err
	}
	return n.say(message)
}

// NotifyUrgent prints the message, cancels current speech and speaks it.
func (n *SpeakingNotifier) NotifyUrgent(ctx context.Context, message string) error {
	if err := n.text.NotifyUrgent(ctx, message); err != nil {
		return err
	}
	n.narrator.Cancel()
	return n.say(message)
}

func (n *SpeakingNotifier) say(message string) error {
	text := cleanForSpeech(message)
	if text == "" {
		return nil
	}
	if err := n.narrator.Speak(text); err != nil {
		n.log.Warn("notifier: speech failed: %v", err)
	}
	return nil
}

var bracketPrefix = regexp.MustCompile(`^\[[A-Za-z]+\]\s*`)
var ansiCodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// cleanForSpeech strips formatting artifacts that shouldn't be spoken.
func cleanForSpeech(msg string) string {
	cleaned := ansiCodes.ReplaceAllString(msg, "")
	cleaned = bracketPrefix.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
