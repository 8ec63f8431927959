package domain

import "time"

// Module names recorded in the journal.
const (
	ModuleQuickCalm      = "Quick Calm"
	ModuleBreathing      = "Breathing Coach"
	ModuleVoiceWarmup    = "Voice Warmup"
	ModuleTriangleGaze   = "Triangle Gaze"
	ModuleMicroExposure  = "Micro-Exposure"
	ModulePrimerPractice = "Meeting Primer - practice"
	ModulePrimerGlute    = "Meeting Primer - glute"
	ModulePrimerTimer    = "Meeting Primer - timer"
	ModuleOther          = "Other"
)

// Modules lists the names accepted for manual journal entries.
var Modules = []string{
	ModuleQuickCalm,
	ModuleBreathing,
	ModuleVoiceWarmup,
	ModuleTriangleGaze,
	ModuleMicroExposure,
	"Meeting Primer",
	ModuleOther,
}

// Session represents one running or finished practice routine.
type Session struct {
	ID        string
	Module    string
	Routine   string // pattern, cue set or label being played
	Notes     string
	Planned   time.Duration
	Status    SessionStatus
	StartedAt time.Time
	UpdatedAt time.Time
	EndedAt   time.Time
}

// SessionStatus tracks the lifecycle of a practice session.
type SessionStatus int

const (
	SessionActive SessionStatus = iota
	SessionCompleted
	SessionStopped
)

// String returns a human-readable session status.
func (s SessionStatus) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionCompleted:
		return "completed"
	case SessionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
