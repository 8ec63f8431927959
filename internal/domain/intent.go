package domain

// IntentType classifies what the user wants to do.
type IntentType int

const (
	IntentUnknown IntentType = iota
	IntentHelp
	IntentList
	IntentQuickCalm
	IntentBreathe
	IntentGaze
	IntentWarmup
	IntentExposure
	IntentPractice
	IntentNextLine
	IntentRepeatLine
	IntentGlute
	IntentPrep
	IntentTimer
	IntentStop
	IntentPauseVoice
	IntentResumeVoice
	IntentQuietVoice
	IntentStatus
	IntentLog
	IntentTips
	IntentPRA
	IntentQuit
)

var intentNames = map[IntentType]string{
	IntentUnknown:     "unknown",
	IntentHelp:        "help",
	IntentList:        "list",
	IntentQuickCalm:   "quick_calm",
	IntentBreathe:     "breathe",
	IntentGaze:        "gaze",
	IntentWarmup:      "warmup",
	IntentExposure:    "exposure",
	IntentPractice:    "practice",
	IntentNextLine:    "next_line",
	IntentRepeatLine:  "repeat_line",
	IntentGlute:       "glute",
	IntentPrep:        "prep",
	IntentTimer:       "timer",
	IntentStop:        "stop",
	IntentPauseVoice:  "pause_voice",
	IntentResumeVoice: "resume_voice",
	IntentQuietVoice:  "quiet_voice",
	IntentStatus:      "status",
	IntentLog:         "log",
	IntentTips:        "tips",
	IntentPRA:         "pra",
	IntentQuit:        "quit",
}

// String returns a human-readable intent type.
func (i IntentType) String() string {
	if s, ok := intentNames[i]; ok {
		return s
	}
	return "unknown"
}

// Intent represents a parsed user action.
type Intent struct {
	Type    IntentType
	Payload string   // first argument, e.g. pattern name
	Args    []string // remaining arguments
}

// IntentFromString converts a snake_case intent name to an IntentType.
// Returns IntentUnknown for unrecognized names.
func IntentFromString(name string) IntentType {
	for t, s := range intentNames {
		if s == name {
			return t
		}
	}
	return IntentUnknown
}
