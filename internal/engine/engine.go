// Package engine hosts the practice routines. It owns one phase sequencer,
// one cue caller and one countdown, allows a single running session, and
// writes a journal row whenever a routine finishes on its own.
package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
	"github.com/hammamikhairi/calmcoach/internal/speech"
	"github.com/hammamikhairi/calmcoach/internal/timer"
)

// Routine parameters fixed by the coaching program.
const (
	QuickCalmCycles  = 5
	GluteCycles      = 3
	GluteHoldSeconds = 3
	WarmupSeconds    = 60
	PracticeLines    = 12
	DeckLines        = 20
	DefaultPromptSet = "default"
	DefaultCueSet    = "triangle"
	sighPatternID    = "sigh"
)

type runner int

const (
	runSequencer runner = iota
	runCaller
	runCountdown
)

// activeRun is the session being played and the component playing it.
// Each run owns its runner so a late completion cannot touch a newer run.
type activeRun struct {
	session *domain.Session
	runner  runner
	cycles  int

	seq       *timer.Sequencer
	caller    *timer.Caller
	countdown *timer.Countdown
}

func (r *activeRun) stop() {
	switch r.runner {
	case runCaller:
		r.caller.Stop()
	case runCountdown:
		r.countdown.Stop()
	default:
		r.seq.Stop()
	}
}

// deck walks the anti-silence phrase lines for one meeting type.
type deck struct {
	meetingType string
	lines       []string
	idx         int
}

// voicePauser is implemented by narrators that can hold playback.
type voicePauser interface {
	Pause()
	Resume()
}

// Engine runs coaching sessions. It depends only on interfaces and is
// fully testable with fakes and a manual clock.
type Engine struct {
	routines domain.RoutineSource
	store    domain.SessionStore
	journal  domain.Journal
	log      *logger.Logger

	narrator     domain.Narrator
	display      domain.Display
	notifier     domain.Notifier
	chimer       domain.Chimer
	clock        timer.Clock
	historyLimit int

	timerOpts []timer.Option

	mu     sync.Mutex
	active *activeRun
	deck   *deck
}

// New creates an engine with the given dependencies and options.
func New(routines domain.RoutineSource, store domain.SessionStore, journal domain.Journal, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		routines:     routines,
		store:        store,
		journal:      journal,
		log:          log,
		clock:        timer.SystemClock,
		historyLimit: 50,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.timerOpts = []timer.Option{timer.WithClock(e.clock)}
	if e.chimer != nil {
		e.timerOpts = append(e.timerOpts, timer.WithChimer(e.chimer))
	}
	return e
}

// ── Routines ─────────────────────────────────────────────────────

// QuickCalm plays five physiological sighs.
func (e *Engine) QuickCalm(ctx context.Context) (*domain.Session, error) {
	p, err := e.routines.Pattern(ctx, sighPatternID)
	if err != nil {
		return nil, fmt.Errorf("getting pattern: %w", err)
	}
	return e.playPattern(ctx, *p, QuickCalmCycles, domain.ModuleQuickCalm, "panic reset")
}

// Breathe plays a catalog pattern for the given number of cycles.
func (e *Engine) Breathe(ctx context.Context, pattern string, cycles int) (*domain.Session, error) {
	p, err := e.routines.Pattern(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("getting pattern: %w", err)
	}
	notes := fmt.Sprintf("%s x%d", p.Name, cycles)
	return e.playPattern(ctx, *p, cycles, domain.ModuleBreathing, notes)
}

// Gaze calls a cue set. A zero interval or rounds uses the set's own
// values.
func (e *Engine) Gaze(ctx context.Context, cueSet string, interval time.Duration, rounds int) (*domain.Session, error) {
	if cueSet == "" {
		cueSet = DefaultCueSet
	}
	cs, err := e.routines.CueSet(ctx, cueSet)
	if err != nil {
		return nil, fmt.Errorf("getting cue set: %w", err)
	}
	if interval == 0 {
		interval = cs.Interval
	}
	if rounds == 0 {
		rounds = cs.Rounds
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkIdle(); err != nil {
		return nil, err
	}

	// The last cue is announced at (cues*rounds - 1) intervals.
	planned := interval * time.Duration(len(cs.Cues)*rounds-1)
	sess := e.newSession(domain.ModuleTriangleGaze, cs.Name, fmt.Sprintf("%d rounds", rounds), planned)
	run := &activeRun{session: sess, runner: runCaller, cycles: rounds}
	run.caller = timer.NewCaller(e.narrator, e.display, e.log.Component("caller"), e.optsFor(run)...)
	e.active = run
	if err := run.caller.Start(cs.Cues, interval, rounds); err != nil {
		e.active = nil
		return nil, err
	}
	return e.saveStarted(ctx, sess)
}

// Warmup speaks the voice warmup instructions and runs a one minute
// countdown.
func (e *Engine) Warmup(ctx context.Context) (*domain.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkIdle(); err != nil {
		return nil, err
	}

	sess := e.newSession(domain.ModuleVoiceWarmup, speech.WarmupLabel, "mmm/brrr/siren", WarmupSeconds*time.Second)
	run := e.countdownRun(sess)
	e.active = run
	if err := run.countdown.Start(speech.WarmupLabel, WarmupSeconds); err != nil {
		e.active = nil
		return nil, err
	}
	e.speak(speech.LineWarmup())
	return e.saveStarted(ctx, sess)
}

// Exposure plays count speaking prompts of the given length each, cycling
// through the prompt set.
func (e *Engine) Exposure(ctx context.Context, seconds, count int) (*domain.Session, error) {
	if count < 1 {
		return nil, fmt.Errorf("%d prompts: %w", count, domain.ErrInvalidCount)
	}
	ps, err := e.routines.PromptSet(ctx, DefaultPromptSet)
	if err != nil {
		return nil, fmt.Errorf("getting prompts: %w", err)
	}
	if len(ps.Prompts) == 0 {
		return nil, domain.ErrEmptyPattern
	}

	p := domain.Pattern{ID: "exposure", Name: ps.Name}
	for i := 0; i < count; i++ {
		prompt := ps.Prompts[i%len(ps.Prompts)]
		p.Phases = append(p.Phases, domain.Phase{
			Label:   prompt,
			Seconds: seconds,
			Visual:  domain.VisualNeutral,
			Say:     speech.LineExposurePrompt(strings.TrimRight(prompt, ".?!"), seconds),
		})
	}
	return e.playPattern(ctx, p, 1, domain.ModuleMicroExposure, fmt.Sprintf("%d prompts", count))
}

// Practice reads the first phrase-bank lines for a meeting type aloud,
// holding each for secondsPer, for the given number of rounds.
func (e *Engine) Practice(ctx context.Context, meetingType string, secondsPer, rounds int) (*domain.Session, error) {
	bank, err := e.phraseBank(ctx, meetingType)
	if err != nil {
		return nil, err
	}

	lines := bank.Lines
	if len(lines) > PracticeLines {
		lines = lines[:PracticeLines]
	}
	p := domain.Pattern{ID: "practice", Name: bank.MeetingType + " practice"}
	for _, line := range lines {
		p.Phases = append(p.Phases, domain.Phase{
			Label:   line,
			Seconds: secondsPer,
			Visual:  domain.VisualNeutral,
		})
	}
	notes := fmt.Sprintf("%s %dr x %ds", bank.MeetingType, rounds, secondsPer)
	return e.playPattern(ctx, p, rounds, domain.ModulePrimerPractice, notes)
}

// Glute runs three three-second squeeze holds.
func (e *Engine) Glute(ctx context.Context) (*domain.Session, error) {
	p := domain.Pattern{
		ID:   "glute",
		Name: "Glute Squeeze",
		Phases: []domain.Phase{
			{Label: "Hold", Seconds: GluteHoldSeconds, Visual: domain.VisualHold, Say: "Squeeze"},
		},
	}
	if found, err := e.routines.Pattern(ctx, "glute"); err == nil {
		p = *found
	}
	notes := fmt.Sprintf("%d x %ds", GluteCycles, p.CycleSeconds())
	return e.playPattern(ctx, p, GluteCycles, domain.ModulePrimerGlute, notes)
}

// Prep runs a pre-meeting countdown of the given minutes.
func (e *Engine) Prep(ctx context.Context, minutes int) (*domain.Session, error) {
	if minutes < 1 {
		return nil, fmt.Errorf("%d minutes: %w", minutes, domain.ErrInvalidDuration)
	}
	return e.playCountdown(ctx, "Prep", minutes*60, domain.ModulePrimerTimer, fmt.Sprintf("%d min", minutes))
}

// Timer runs a plain countdown.
func (e *Engine) Timer(ctx context.Context, seconds int, label string) (*domain.Session, error) {
	if strings.TrimSpace(label) == "" {
		label = "Timer"
	}
	return e.playCountdown(ctx, label, seconds, domain.ModuleOther, label)
}

// Stop halts the running session. Nothing is written to the journal.
func (e *Engine) Stop(ctx context.Context) (*domain.Session, error) {
	e.mu.Lock()
	run := e.active
	e.active = nil
	if run != nil {
		run.stop()
	}
	e.mu.Unlock()

	if run == nil {
		return nil, domain.ErrNoSession
	}

	now := e.clock.Now()
	sess := run.session
	sess.Status = domain.SessionStopped
	sess.EndedAt = now
	sess.UpdatedAt = now
	if err := e.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	e.log.Info("session %s stopped (%s)", sess.ID, sess.Module)
	return sess, nil
}

// Status returns the running session.
func (e *Engine) Status(ctx context.Context) (*domain.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil, domain.ErrNoSession
	}
	cp := *e.active.session
	return &cp, nil
}

// Progress describes how far the running session has got, for example
// "cycle 2 of 5".
func (e *Engine) Progress() (string, bool) {
	e.mu.Lock()
	run := e.active
	e.mu.Unlock()
	if run == nil {
		return "", false
	}

	switch run.runner {
	case runCaller:
		if cur, total, ok := run.caller.Round(); ok {
			return fmt.Sprintf("round %d of %d", cur, total), true
		}
	case runCountdown:
		left := run.session.Planned - e.clock.Now().Sub(run.session.StartedAt)
		if left < 0 {
			left = 0
		}
		return fmt.Sprintf("%s left", speech.FormatDurationSpeech(left)), true
	default:
		if cycle, _, ok := run.seq.Position(); ok {
			return fmt.Sprintf("cycle %d of %d", cycle+1, run.cycles), true
		}
	}
	return "", false
}

// Close stops whatever is running without recording it.
func (e *Engine) Close() {
	if _, err := e.Stop(context.Background()); err == nil {
		e.log.Debug("engine closed with a session running")
	}
}

// ── Voice control ────────────────────────────────────────────────

// PauseVoice holds narration playback. It reports false when the narrator
// cannot pause.
func (e *Engine) PauseVoice() bool {
	p, ok := e.narrator.(voicePauser)
	if ok {
		p.Pause()
	}
	return ok
}

// ResumeVoice continues held narration.
func (e *Engine) ResumeVoice() bool {
	p, ok := e.narrator.(voicePauser)
	if ok {
		p.Resume()
	}
	return ok
}

// QuietVoice cuts off the current utterance.
func (e *Engine) QuietVoice() {
	if e.narrator != nil {
		e.narrator.Cancel()
	}
}

// ── Anti-silence deck ────────────────────────────────────────────

// NextLine speaks and returns the next practice line for a meeting type.
// An empty meeting type keeps the current deck, or uses the first type.
func (e *Engine) NextLine(ctx context.Context, meetingType string) (string, error) {
	e.mu.Lock()
	d := e.deck
	e.mu.Unlock()

	if d == nil || (meetingType != "" && !strings.EqualFold(meetingType, d.meetingType)) {
		bank, err := e.phraseBank(ctx, meetingType)
		if err != nil {
			return "", err
		}
		lines := bank.Lines
		if len(lines) > DeckLines {
			lines = lines[:DeckLines]
		}
		if len(lines) == 0 {
			return "", domain.ErrEmptyPattern
		}
		d = &deck{meetingType: bank.MeetingType, lines: lines, idx: -1}
	}

	e.mu.Lock()
	d.idx = (d.idx + 1) % len(d.lines)
	e.deck = d
	line := d.lines[d.idx]
	e.mu.Unlock()

	e.speak(line)
	return line, nil
}

// RepeatLine speaks and returns the current deck line again.
func (e *Engine) RepeatLine(ctx context.Context) (string, error) {
	e.mu.Lock()
	d := e.deck
	var line string
	if d != nil && d.idx >= 0 {
		line = d.lines[d.idx]
	}
	e.mu.Unlock()

	if line == "" {
		return "", fmt.Errorf("no line yet: %w", domain.ErrNotFound)
	}
	e.speak(line)
	return line, nil
}

// ── Journal & library ────────────────────────────────────────────

// Record appends a manual journal entry. A zero time means now.
func (e *Engine) Record(ctx context.Context, entry domain.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.Time.IsZero() {
		entry.Time = e.clock.Now()
	}
	if err := e.journal.Append(ctx, entry); err != nil {
		return fmt.Errorf("recording entry: %w", err)
	}
	e.log.Info("recorded %s (%ds)", entry.Module, entry.DurationSec)
	return nil
}

// History returns every journal entry.
func (e *Engine) History(ctx context.Context) ([]domain.Entry, error) {
	return e.journal.List(ctx)
}

// Sessions returns every session the store still holds.
func (e *Engine) Sessions(ctx context.Context) ([]*domain.Session, error) {
	return e.store.List(ctx)
}

// Patterns lists the breathing patterns.
func (e *Engine) Patterns(ctx context.Context) ([]domain.PatternSummary, error) {
	return e.routines.Patterns(ctx)
}

// CueSets lists the gaze cue sets.
func (e *Engine) CueSets(ctx context.Context) ([]domain.CueSet, error) {
	return e.routines.CueSets(ctx)
}

// Tips lists the tip sets.
func (e *Engine) Tips(ctx context.Context) ([]domain.TipSet, error) {
	return e.routines.Tips(ctx)
}

// MeetingTypes lists the meeting types with practice lines.
func (e *Engine) MeetingTypes(ctx context.Context) ([]string, error) {
	return e.routines.MeetingTypes(ctx)
}

// ── Internals ────────────────────────────────────────────────────

func (e *Engine) playPattern(ctx context.Context, p domain.Pattern, cycles int, module, notes string) (*domain.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkIdle(); err != nil {
		return nil, err
	}

	planned := time.Duration(p.CycleSeconds()*max(cycles, 0)) * time.Second
	sess := e.newSession(module, p.Name, notes, planned)
	run := &activeRun{session: sess, runner: runSequencer, cycles: cycles}
	run.seq = timer.New(e.narrator, e.display, e.log.Component("sequencer"), e.optsFor(run)...)
	e.active = run
	if err := run.seq.Start(p, cycles); err != nil {
		e.active = nil
		return nil, err
	}
	return e.saveStarted(ctx, sess)
}

func (e *Engine) playCountdown(ctx context.Context, label string, seconds int, module, notes string) (*domain.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkIdle(); err != nil {
		return nil, err
	}

	sess := e.newSession(module, label, notes, time.Duration(seconds)*time.Second)
	run := e.countdownRun(sess)
	e.active = run
	if err := run.countdown.Start(label, seconds); err != nil {
		e.active = nil
		return nil, err
	}
	return e.saveStarted(ctx, sess)
}

func (e *Engine) countdownRun(sess *domain.Session) *activeRun {
	run := &activeRun{session: sess, runner: runCountdown, cycles: 1}
	run.countdown = timer.NewCountdown(e.display, e.log.Component("countdown"), e.optsFor(run)...)
	return run
}

// optsFor returns runner options whose completion reports for run only.
func (e *Engine) optsFor(run *activeRun) []timer.Option {
	opts := append([]timer.Option(nil), e.timerOpts...)
	return append(opts, timer.WithCompletion(func(r timer.Report) { e.finish(run, r) }))
}

// checkIdle rejects a start while a session runs. Caller holds e.mu.
func (e *Engine) checkIdle() error {
	if e.active != nil {
		return fmt.Errorf("%s is running: %w", e.active.session.Module, domain.ErrSessionActive)
	}
	return nil
}

func (e *Engine) newSession(module, routine, notes string, planned time.Duration) *domain.Session {
	now := e.clock.Now()
	return &domain.Session{
		ID:        generateID(),
		Module:    module,
		Routine:   routine,
		Notes:     notes,
		Planned:   planned,
		Status:    domain.SessionActive,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// saveStarted persists a new session. Caller holds e.mu.
func (e *Engine) saveStarted(ctx context.Context, sess *domain.Session) (*domain.Session, error) {
	if err := e.store.Save(ctx, sess); err != nil {
		e.log.Warn("saving session %s: %v", sess.ID, err)
	}
	e.log.Info("started session %s: %s (%s)", sess.ID, sess.Module, sess.Routine)
	cp := *sess
	return &cp, nil
}

// finish handles a natural completion of run. A completion for a run that
// was stopped or replaced is ignored.
func (e *Engine) finish(run *activeRun, r timer.Report) {
	e.mu.Lock()
	if run == nil || e.active != run {
		e.mu.Unlock()
		e.log.Debug("completion for a session that is no longer running, ignoring")
		return
	}
	e.active = nil
	e.mu.Unlock()

	ctx := context.Background()
	now := e.clock.Now()
	sess := run.session
	sess.Status = domain.SessionCompleted
	sess.EndedAt = now
	sess.UpdatedAt = now
	if err := e.store.Save(ctx, sess); err != nil {
		e.log.Warn("saving session %s: %v", sess.ID, err)
	}
	if p, ok := e.store.(interface {
		Prune(ctx context.Context, keep int) int
	}); ok && e.historyLimit > 0 {
		p.Prune(ctx, e.historyLimit)
	}

	entry := domain.Entry{
		Time:        now,
		Module:      sess.Module,
		DurationSec: int(math.Round(r.Elapsed.Seconds())),
		Notes:       sess.Notes,
	}
	if err := e.journal.Append(ctx, entry); err != nil {
		e.log.Error("journal append for %s failed: %v", sess.ID, err)
	}
	e.log.Info("session %s completed (%s, %ds)", sess.ID, sess.Module, entry.DurationSec)

	e.speak(speech.LineDone())
	if e.notifier != nil {
		msg := speech.LineSessionDone(sess.Module, r.Elapsed)
		if err := e.notifier.Notify(ctx, msg); err != nil {
			e.log.Warn("notify failed: %v", err)
		}
	}
}

func (e *Engine) speak(text string) {
	if e.narrator == nil {
		return
	}
	if err := e.narrator.Speak(text); err != nil {
		e.log.Warn("narration failed for %q: %v", text, err)
	}
}

func (e *Engine) phraseBank(ctx context.Context, meetingType string) (*domain.PhraseBank, error) {
	if meetingType == "" {
		types, err := e.routines.MeetingTypes(ctx)
		if err != nil {
			return nil, err
		}
		if len(types) == 0 {
			return nil, fmt.Errorf("no meeting types: %w", domain.ErrNotFound)
		}
		meetingType = types[0]
	}
	bank, err := e.routines.PhraseBank(ctx, meetingType)
	if err != nil {
		return nil, fmt.Errorf("getting phrase bank: %w", err)
	}
	return bank, nil
}
