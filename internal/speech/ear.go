package speech

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// Default wake phrases. Whisper mishears short names, so a few spellings
// are accepted.
var defaultWakeWords = []string{
	"hey coach",
	"hey, coach",
	"calm coach",
	"ok coach",
	"okay coach",
	"coach",
}

// envAnnotation matches whisper annotations like "(keyboard clicking)".
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z_][a-zA-Z_\s]*[\)\]]`)

// hallucinations are whole transcriptions whisper produces from silence.
var hallucinations = map[string]bool{
	"...":                     true,
	"you":                     true,
	"thank you.":              true,
	"thanks for watching!":    true,
	"thank you for watching.": true,
	"bye.":                    true,
}

// voiceOut is the part of the Mouth the Ear coordinates with.
type voiceOut interface {
	IsSpeaking() bool
	Interrupt()
	Say(text string)
}

// EarOption configures the Ear.
type EarOption func(*Ear)

// WithRecordDuration sets the length of each recorded clip.
func WithRecordDuration(d time.Duration) EarOption {
	return func(e *Ear) { e.clip = d }
}

// WithFollowUpDuration sets the clip length used after a bare wake phrase.
func WithFollowUpDuration(d time.Duration) EarOption {
	return func(e *Ear) { e.followUp = d }
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) EarOption {
	return func(e *Ear) { e.tempDir = dir }
}

// WithWakeWords overrides the default wake phrases.
func WithWakeWords(words ...string) EarOption {
	return func(e *Ear) { e.wakeWords = words }
}

// Ear turns spoken commands ("hey coach, stop") into text using a local
// whisper model. Clips recorded while the Mouth is speaking are discarded
// so narration never triggers a command.
type Ear struct {
	whisperBin string
	modelPath  string
	tempDir    string
	log        *logger.Logger
	mouth      voiceOut

	wakeWords []string
	clip      time.Duration
	followUp  time.Duration

	// record is swapped in tests.
	record func(ctx context.Context, d time.Duration) string

	mu     sync.Mutex
	muted  bool
	textCh chan string
}

// NewEar creates a voice command listener. mouth may be nil.
func NewEar(whisperBin, modelPath string, mouth voiceOut, log *logger.Logger, opts ...EarOption) *Ear {
	e := &Ear{
		whisperBin: whisperBin,
		modelPath:  modelPath,
		tempDir:    ".calmcoach/stt",
		log:        log,
		mouth:      mouth,
		wakeWords:  defaultWakeWords,
		clip:       3 * time.Second,
		followUp:   4 * time.Second,
		textCh:     make(chan string, 4),
	}
	e.record = e.recordChunk
	for _, opt := range opts {
		opt(e)
	}

	if _, err := exec.LookPath(e.whisperBin); err != nil {
		log.Error("ear: whisper binary %q not found in PATH: %v", e.whisperBin, err)
	}
	return e
}

// C returns the channel that receives voice commands.
func (e *Ear) C() <-chan string {
	return e.textCh
}

// Mute temporarily disables listening.
func (e *Ear) Mute() {
	e.mu.Lock()
	e.muted = true
	e.mu.Unlock()
}

// Unmute re-enables listening.
func (e *Ear) Unmute() {
	e.mu.Lock()
	e.muted = false
	e.mu.Unlock()
}

func (e *Ear) isMuted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *Ear) mouthBusy() bool {
	return e.mouth != nil && e.mouth.IsSpeaking()
}

// Run records and transcribes clips until ctx is cancelled. Call it in a
// goroutine.
func (e *Ear) Run(ctx context.Context) {
	e.log.Info("ear: started (clip=%s, wake=%v)", e.clip, e.wakeWords)
	for {
		select {
		case <-ctx.Done():
			e.log.Info("ear: stopped")
			return
		default:
		}

		if e.isMuted() || e.mouthBusy() {
			sleepCtx(ctx, 200*time.Millisecond)
			continue
		}
		e.listenOnce(ctx)
	}
}

// listenOnce records one clip and forwards any command it contains.
func (e *Ear) listenOnce(ctx context.Context) {
	text := e.record(ctx, e.clip)
	if e.mouthBusy() {
		e.log.Debug("ear: discarding clip recorded over narration")
		return
	}

	text = cleanTranscription(text)
	if text == "" {
		return
	}

	rest, ok := e.stripWakeWord(text)
	if !ok {
		e.log.Debug("ear: ignoring %q", text)
		return
	}
	e.log.Info("ear: wake phrase in %q", text)

	if rest == "" {
		if e.mouth != nil {
			e.mouth.Say(LineListening())
		}
		for e.mouthBusy() && ctx.Err() == nil {
			sleepCtx(ctx, 100*time.Millisecond)
		}
		rest = cleanTranscription(e.record(ctx, e.followUp))
		if rest == "" {
			return
		}
	}

	select {
	case e.textCh <- rest:
	case <-ctx.Done():
	}
}

// stripWakeWord returns the text after the first wake phrase found and
// whether one was found.
func (e *Ear) stripWakeWord(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, w := range e.wakeWords {
		idx := strings.Index(lower, strings.ToLower(w))
		if idx < 0 {
			continue
		}
		rest := text[idx+len(w):]
		rest = strings.Trim(rest, " ,.!?\n\r\t")
		return rest, true
	}
	return "", false
}

// recordChunk does one whisper recording of the given length.
func (e *Ear) recordChunk(ctx context.Context, duration time.Duration) string {
	var result string
	var wg sync.WaitGroup
	wg.Add(1)

	callback := func(text string) {
		result = text
		wg.Done()
	}

	verbose := e.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(e.whisperBin, e.modelPath, e.tempDir, "wav", callback, verbose)
	if err != nil {
		e.log.Error("ear: transcriber init failed: %v", err)
		sleepCtx(ctx, 2*time.Second)
		return ""
	}
	if err := t.Start(); err != nil {
		e.log.Error("ear: recording start failed: %v", err)
		sleepCtx(ctx, 2*time.Second)
		return ""
	}

	sleepCtx(ctx, duration)
	t.Stop()
	wg.Wait()
	if ctx.Err() != nil {
		return ""
	}
	return result
}

// cleanTranscription normalizes whitespace and drops whisper artifacts
// such as "[BLANK_AUDIO]" or a lone "Thank you.".
func cleanTranscription(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	s = envAnnotation.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	if hallucinations[strings.ToLower(s)] {
		return ""
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
