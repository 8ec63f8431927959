package speech

import (
	"fmt"
	"math"
)

// Default neural voices per supported language.
// Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
var DefaultVoices = map[string]string{
	"en-US": "en-US-AvaNeural",
	"bn-BD": "bn-BD-NabanitaNeural",
}

// DefaultLanguage is used when no language is configured.
const DefaultLanguage = "en-US"

// Audio format returned by Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Audio parameters matching the default format.
const (
	SampleRate   = 24000
	ChannelCount = 1
)

// Env var names for Azure Speech credentials.
const (
	EnvAzureSpeechKey    = "AZURE_SPEECH_KEY"
	EnvAzureSpeechRegion = "AZURE_SPEECH_REGION"
)

// Prosody bounds accepted for rate and pitch multipliers.
const (
	MinProsody   = 0.6
	MaxProsody   = 1.6
	DefaultRate  = 0.95
	DefaultPitch = 1.05
)

// Voice describes how narration should sound.
type Voice struct {
	Lang  string
	Name  string  // Azure voice, derived from Lang when empty
	Rate  float64 // 1.0 is normal speed
	Pitch float64 // 1.0 is normal pitch
}

// DefaultVoice returns the calm default voice settings.
func DefaultVoice() Voice {
	return Voice{
		Lang:  DefaultLanguage,
		Name:  DefaultVoices[DefaultLanguage],
		Rate:  DefaultRate,
		Pitch: DefaultPitch,
	}
}

// Normalized fills in missing fields and clamps rate and pitch.
func (v Voice) Normalized() Voice {
	if v.Lang == "" {
		v.Lang = DefaultLanguage
	}
	if v.Name == "" {
		name, ok := DefaultVoices[v.Lang]
		if !ok {
			name = DefaultVoices[DefaultLanguage]
		}
		v.Name = name
	}
	if v.Rate == 0 {
		v.Rate = DefaultRate
	}
	if v.Pitch == 0 {
		v.Pitch = DefaultPitch
	}
	v.Rate = clamp(v.Rate, MinProsody, MaxProsody)
	v.Pitch = clamp(v.Pitch, MinProsody, MaxProsody)
	return v
}

// CacheKey identifies synthesized audio for this voice. Any change to the
// voice, language or prosody misses the cache.
func (v Voice) CacheKey() string {
	return fmt.Sprintf("%s|%s|%.2f|%.2f", v.Name, v.Lang, v.Rate, v.Pitch)
}

// prosodyPercent converts a multiplier into an SSML relative value,
// e.g. 0.95 -> "-5%".
func prosodyPercent(m float64) string {
	pct := int(math.Round((m - 1) * 100))
	if pct >= 0 {
		return fmt.Sprintf("+%d%%", pct)
	}
	return fmt.Sprintf("%d%%", pct)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
