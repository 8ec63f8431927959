// Package domain defines the core types and interfaces for the calm coach.
// All other packages depend on domain; domain depends on nothing.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Visual is the animation a display should apply during a phase.
type Visual string

const (
	VisualNeutral Visual = "neutral"
	VisualExpand  Visual = "expand"
	VisualShrink  Visual = "shrink"
	VisualHold    Visual = "hold"
)

// ParseVisual converts a config value to a Visual. An empty string maps to
// VisualNeutral.
func ParseVisual(s string) (Visual, error) {
	switch Visual(strings.ToLower(strings.TrimSpace(s))) {
	case "", VisualNeutral:
		return VisualNeutral, nil
	case VisualExpand:
		return VisualExpand, nil
	case VisualShrink:
		return VisualShrink, nil
	case VisualHold:
		return VisualHold, nil
	default:
		return VisualNeutral, fmt.Errorf("unknown visual %q: %w", s, ErrValidation)
	}
}

// Scale returns the relative size of the breathing circle for the visual.
func (v Visual) Scale() float64 {
	switch v {
	case VisualExpand:
		return 1.35
	case VisualShrink:
		return 0.83
	default:
		return 1.0
	}
}

// Phase is one timed beat within a pattern.
type Phase struct {
	Label   string
	Seconds int
	Visual  Visual
	Say     string // spoken text, Label when empty
}

// Narration returns the text to speak when the phase begins.
func (p Phase) Narration() string {
	if p.Say != "" {
		return p.Say
	}
	return p.Label
}

// Pattern is an ordered, non-empty list of phases played as one cycle.
type Pattern struct {
	ID          string
	Name        string
	Description string
	Phases      []Phase
}

// Validate checks the pattern can be played.
func (p Pattern) Validate() error {
	if len(p.Phases) == 0 {
		return ErrEmptyPattern
	}
	for i, ph := range p.Phases {
		if ph.Seconds <= 0 {
			return fmt.Errorf("phase %d (%q) has %d seconds: %w", i, ph.Label, ph.Seconds, ErrInvalidDuration)
		}
	}
	return nil
}

// CycleSeconds returns the duration of one full cycle.
func (p Pattern) CycleSeconds() int {
	total := 0
	for _, ph := range p.Phases {
		total += ph.Seconds
	}
	return total
}

// Summary returns the lightweight listing view.
func (p Pattern) Summary() PatternSummary {
	return PatternSummary{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		CycleSeconds: p.CycleSeconds(),
	}
}

// PatternSummary is a lightweight view of a pattern for listing.
type PatternSummary struct {
	ID           string
	Name         string
	Description  string
	CycleSeconds int
}

// CueSet is a round-robin list of short cues announced at a fixed interval.
type CueSet struct {
	ID       string
	Name     string
	Cues     []string
	Interval time.Duration
	Rounds   int
	Advice   string // spoken once after the set completes
}

// PromptSet holds speaking prompts for micro-exposure practice.
type PromptSet struct {
	ID      string
	Name    string
	Prompts []string
}

// PhraseBank holds short practice lines for one meeting type.
type PhraseBank struct {
	MeetingType string
	Lines       []string
}

// TipSet is a named group of short tips.
type TipSet struct {
	ID   string
	Name string
	Tips []string
}

// PRACard is a Purpose, Result, Ask summary prepared before a meeting.
type PRACard struct {
	Purpose  string
	Result   string
	Ask      string
	Decision bool
}

// String renders the card as plain text.
func (c PRACard) String() string {
	decision := "No"
	if c.Decision {
		decision = "Yes"
	}
	return fmt.Sprintf("Purpose: %s\nResult: %s\nAsk / Risk: %s\nDecision today: %s",
		c.Purpose, c.Result, c.Ask, decision)
}
