package domain

import "context"

// Narrator speaks short cues. Speak must return promptly; playback happens
// in the background and a newer utterance supersedes an older one.
type Narrator interface {
	Speak(text string) error
	Cancel()
}

// Display renders the current phase. remaining is whole seconds.
type Display interface {
	Update(label string, v Visual, remaining int)
	Reset()
}

// RoundIndicator is an optional Display capability showing "Round n of N".
type RoundIndicator interface {
	ShowRound(current, total int)
}

// Chimer plays a short tone at each phase boundary.
type Chimer interface {
	Chime()
}

// RoutineSource provides patterns, cue sets and the supporting practice
// material. Implementations can be embedded, file-based or both.
type RoutineSource interface {
	Patterns(ctx context.Context) ([]PatternSummary, error)
	Pattern(ctx context.Context, idOrName string) (*Pattern, error)
	CueSet(ctx context.Context, idOrName string) (*CueSet, error)
	CueSets(ctx context.Context) ([]CueSet, error)
	PromptSet(ctx context.Context, id string) (*PromptSet, error)
	PhraseBank(ctx context.Context, meetingType string) (*PhraseBank, error)
	MeetingTypes(ctx context.Context) ([]string, error)
	Tips(ctx context.Context) ([]TipSet, error)
}

// SessionStore persists practice sessions.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]*Session, error)
	List(ctx context.Context) ([]*Session, error)
}

// Journal is the append-only record of finished sessions.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
}

// IntentParser converts raw user input into structured intents.
type IntentParser interface {
	Parse(ctx context.Context, input string, session *Session) (*Intent, error)
}

// Notifier delivers messages to the user.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyUrgent(ctx context.Context, message string) error
}
