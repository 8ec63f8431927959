// lines.go holds every spoken string. Keep lines short and calm, the TTS
// engine handles inflection.

package speech

import (
	"fmt"
	"math/rand"
	"time"
)

// ── Greeting / Global ────────────────────────────────────────────

func LineWelcome() string {
	return "Hi. Let's settle in. Say quick calm, breathe, gaze, warmup, or practice."
}

func LineBye() string {
	return "Take care."
}

func LineAlreadyActive() string {
	return "A routine is already running. Say stop first."
}

func LineNothingRunning() string {
	return "Nothing is running."
}

func LineStopped() string {
	return "Stopped."
}

func LinePaused() string {
	return "Voice paused."
}

func LineResumed() string {
	return "Voice back on."
}

func LineUnknown(input string) string {
	return fmt.Sprintf("I didn't catch %q. Say help for options.", input)
}

// ── Routines ─────────────────────────────────────────────────────

func LineQuickCalm() string {
	return "Quick calm. Two short inhales through the nose, one long exhale. Five rounds."
}

// LineWarmup is the voice warmup instruction read before the timer.
func LineWarmup() string {
	return "Hum mmm ten times. Then lip trill brrr. Then siren ng to ah up and down. " +
		"Now say your first sentence three times, slower each time."
}

// WarmupLabel is shown on the display during the warmup countdown.
const WarmupLabel = "Warm up the sound, not loudness."

func LineExposurePrompt(prompt string, seconds int) string {
	return fmt.Sprintf("Start speaking. %s. You have %d seconds.", prompt, seconds)
}

func LineGlute() string {
	return "Squeeze and hold for three. Three times."
}

func LinePrep(minutes int) string {
	if minutes == 1 {
		return "Prep timer, one minute."
	}
	return fmt.Sprintf("Prep timer, %d minutes.", minutes)
}

func LinePRA() string {
	return "Purpose, result, and ask. Keep it tight."
}

// ── Completion ───────────────────────────────────────────────────

var completionLines = []string{
	"Good. Done.",
	"Nice work. Done.",
	"Well done.",
	"That's it. Good.",
}

// LineDone returns a short completion acknowledgement.
func LineDone() string {
	return completionLines[rand.Intn(len(completionLines))]
}

// CompletionLines returns every completion line so they can be prefetched.
func CompletionLines() []string {
	out := make([]string, len(completionLines))
	copy(out, completionLines)
	return out
}

func LineSessionDone(module string, elapsed time.Duration) string {
	return fmt.Sprintf("%s finished in %s.", module, FormatDurationSpeech(elapsed))
}

// ── Listening acknowledgment ─────────────────────────────────────

var listeningFillers = []string{
	"I'm listening.",
	"Listening.",
	"Yes?",
	"I'm here.",
}

// LineListening returns a random acknowledgment for the wake phrase.
func LineListening() string {
	return listeningFillers[rand.Intn(len(listeningFillers))]
}

// ListeningFillers returns all listening acknowledgment strings so they
// can be prefetched into the TTS cache at startup.
func ListeningFillers() []string {
	out := make([]string, len(listeningFillers))
	copy(out, listeningFillers)
	return out
}

// FormatDurationSpeech returns a human-friendly spoken duration.
func FormatDurationSpeech(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	switch {
	case m == 0:
		return fmt.Sprintf("%d seconds", s)
	case s == 0 && m == 1:
		return "1 minute"
	case s == 0:
		return fmt.Sprintf("%d minutes", m)
	default:
		return fmt.Sprintf("%d minutes %d seconds", m, s)
	}
}
