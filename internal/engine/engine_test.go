package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/calmcoach/internal/catalog"
	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
	"github.com/hammamikhairi/calmcoach/internal/speech"
	"github.com/hammamikhairi/calmcoach/internal/storage"
	"github.com/hammamikhairi/calmcoach/internal/timer"
	"github.com/hammamikhairi/calmcoach/internal/timer/timertest"
)

// mockNarrator records spoken text.
type mockNarrator struct {
	mu      sync.Mutex
	spoken  []string
	cancels int
	paused  bool
}

func (n *mockNarrator) Speak(text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.spoken = append(n.spoken, text)
	return nil
}

func (n *mockNarrator) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancels++
}

func (n *mockNarrator) Pause()  { n.mu.Lock(); n.paused = true; n.mu.Unlock() }
func (n *mockNarrator) Resume() { n.mu.Lock(); n.paused = false; n.mu.Unlock() }

func (n *mockNarrator) said() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.spoken...)
}

// silentNarrator cannot pause.
type silentNarrator struct{}

func (silentNarrator) Speak(string) error { return nil }
func (silentNarrator) Cancel()            {}

// mockNotifier captures notifications.
type mockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *mockNotifier) Notify(_ context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *mockNotifier) NotifyUrgent(ctx context.Context, msg string) error {
	return n.Notify(ctx, msg)
}

// mockJournal keeps entries in memory.
type mockJournal struct {
	mu      sync.Mutex
	entries []domain.Entry
}

func (j *mockJournal) Append(_ context.Context, e domain.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *mockJournal) List(context.Context) ([]domain.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.Entry(nil), j.entries...), nil
}

type fixture struct {
	eng      *Engine
	clock    *timertest.ManualClock
	narrator *mockNarrator
	notifier *mockNotifier
	journal  *mockJournal
	store    *storage.MemoryStore
	start    time.Time
}

func setupEngine(t *testing.T) (*fixture, context.Context) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	routines, err := catalog.New(log)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	f := &fixture{
		start:    time.Date(2026, 5, 4, 8, 30, 0, 0, time.Local),
		narrator: &mockNarrator{},
		notifier: &mockNotifier{},
		journal:  &mockJournal{},
		store:    storage.NewMemoryStore(log),
	}
	f.clock = timertest.New(f.start)
	f.eng = New(routines, f.store, f.journal, log,
		WithClock(f.clock),
		WithNarrator(f.narrator),
		WithNotifier(f.notifier),
	)
	return f, context.Background()
}

func (f *fixture) onlyEntry(t *testing.T) domain.Entry {
	t.Helper()
	entries, _ := f.journal.List(context.Background())
	if len(entries) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(entries))
	}
	return entries[0]
}

func TestRoutinesLogOnCompletion(t *testing.T) {
	tests := []struct {
		name    string
		start   func(context.Context, *Engine) (*domain.Session, error)
		run     time.Duration
		module  string
		seconds int
		notes   string
	}{
		{"quick calm", func(ctx context.Context, e *Engine) (*domain.Session, error) {
			return e.QuickCalm(ctx)
		}, 50 * time.Second, domain.ModuleQuickCalm, 50, "panic reset"},
		{"box x2", func(ctx context.Context, e *Engine) (*domain.Session, error) {
			return e.Breathe(ctx, "box", 2)
		}, 32 * time.Second, domain.ModuleBreathing, 32, "Box Breathing x2"},
		{"478 by name", func(ctx context.Context, e *Engine) (*domain.Session, error) {
			return e.Breathe(ctx, "4-7-8 breathing", 1)
		}, 19 * time.Second, domain.ModuleBreathing, 19, "4-7-8 Breathing x1"},
		{"gaze", func(ctx context.Context, e *Engine) (*domain.Session, error) {
			return e.Gaze(ctx, "", time.Second, 2)
		}, 5 * time.Second, domain.ModuleTriangleGaze, 5, "2 rounds"},
		{"warmup", func(ctx context.Context, e *Engine) (*domain.Session, error) {
			return e.Warmup(ctx)
		}, 60 * time.Second, domain.ModuleVoiceWarmup, 60, "mmm/brrr/siren"},
		{"exposure", func(ctx context.Context, e *Engine) (*domain.Session, error) {
			return e.Exposure(ctx, 5, 8)
		}, 40 * time.Second, domain.ModuleMicroExposure, 40, "8 prompts"},
		{"practice", func(ctx context.Context, e *Engine) (*domain.Session, error) {
			return e.Practice(ctx, "1:1", 2, 1)
		}, 24 * time.Second, domain.ModulePrimerPractice, 24, "1:1 1r x 2s"},
		{"glute", func(ctx context.Context, e *Engine) (*domain.Session, error) {
			return e.Glute(ctx)
		}, 9 * time.Second, domain.ModulePrimerGlute, 9, "3 x 3s"},
		{"prep", func(ctx context.Context, e *Engine) (*domain.Session, error) {
			return e.Prep(ctx, 2)
		}, 2 * time.Minute, domain.ModulePrimerTimer, 120, "2 min"},
		{"timer", func(ctx context.Context, e *Engine) (*domain.Session, error) {
			return e.Timer(ctx, 45, "")
		}, 45 * time.Second, domain.ModuleOther, 45, "Timer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ctx := setupEngine(t)

			sess, err := tt.start(ctx, f.eng)
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			if sess.Module != tt.module {
				t.Fatalf("expected module %q, got %q", tt.module, sess.Module)
			}

			f.clock.Advance(tt.run - time.Second)
			if entries, _ := f.journal.List(ctx); len(entries) != 0 {
				t.Fatalf("logged %d entries before the routine finished", len(entries))
			}

			f.clock.Advance(time.Second)
			e := f.onlyEntry(t)
			if e.Module != tt.module || e.DurationSec != tt.seconds || e.Notes != tt.notes {
				t.Fatalf("got entry %+v, want %s %ds %q", e, tt.module, tt.seconds, tt.notes)
			}
			if !e.Time.Equal(f.start.Add(tt.run)) {
				t.Fatalf("entry time %s, want %s", e.Time, f.start.Add(tt.run))
			}

			stored, err := f.store.Load(ctx, sess.ID)
			if err != nil {
				t.Fatalf("load session: %v", err)
			}
			if stored.Status != domain.SessionCompleted {
				t.Fatalf("expected completed, got %s", stored.Status)
			}
			if _, err := f.eng.Status(ctx); !errors.Is(err, domain.ErrNoSession) {
				t.Fatalf("expected ErrNoSession after completion, got %v", err)
			}
			if len(f.notifier.messages) != 1 {
				t.Fatalf("expected 1 notification, got %d", len(f.notifier.messages))
			}
			if f.clock.Pending() != 0 {
				t.Fatalf("expected no pending callbacks, got %d", f.clock.Pending())
			}
		})
	}
}

func TestOneSessionAtATime(t *testing.T) {
	f, ctx := setupEngine(t)

	if _, err := f.eng.QuickCalm(ctx); err != nil {
		t.Fatalf("quick calm: %v", err)
	}
	if _, err := f.eng.Timer(ctx, 30, "tea"); !errors.Is(err, domain.ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
	if _, err := f.eng.Gaze(ctx, "triangle", 0, 0); !errors.Is(err, domain.ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestStopWritesNothing(t *testing.T) {
	f, ctx := setupEngine(t)

	sess, err := f.eng.Breathe(ctx, "box", 4)
	if err != nil {
		t.Fatalf("breathe: %v", err)
	}
	f.clock.Advance(10 * time.Second)

	stopped, err := f.eng.Stop(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.ID != sess.ID || stopped.Status != domain.SessionStopped {
		t.Fatalf("unexpected stopped session %+v", stopped)
	}

	f.clock.Advance(time.Minute)
	if entries, _ := f.journal.List(ctx); len(entries) != 0 {
		t.Fatalf("stop wrote %d journal entries", len(entries))
	}
	if f.clock.Pending() != 0 {
		t.Fatalf("expected no pending callbacks, got %d", f.clock.Pending())
	}
	if _, err := f.eng.Stop(ctx); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession on second stop, got %v", err)
	}

	// A new session can start right away.
	if _, err := f.eng.Glute(ctx); err != nil {
		t.Fatalf("glute after stop: %v", err)
	}
}

func TestStaleCompletionIgnored(t *testing.T) {
	f, ctx := setupEngine(t)

	if _, err := f.eng.Gaze(ctx, "triangle", time.Second, 2); err != nil {
		t.Fatalf("first gaze: %v", err)
	}
	f.eng.mu.Lock()
	stale := f.eng.active
	f.eng.mu.Unlock()
	if _, err := f.eng.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	second, err := f.eng.Gaze(ctx, "triangle", time.Second, 2)
	if err != nil {
		t.Fatalf("second gaze: %v", err)
	}

	// A completion from the stopped run arriving late.
	f.eng.finish(stale, timer.Report{Started: f.start, Elapsed: 5 * time.Second, Cycles: 2, Events: 6})

	cur, err := f.eng.Status(ctx)
	if err != nil {
		t.Fatalf("status after stale completion: %v", err)
	}
	if cur.ID != second.ID || cur.Status != domain.SessionActive {
		t.Fatalf("stale completion replaced the running session: %+v", cur)
	}
	if entries, _ := f.journal.List(ctx); len(entries) != 0 {
		t.Fatalf("stale completion wrote %d journal entries", len(entries))
	}
	if progress, ok := f.eng.Progress(); !ok || progress != "round 1 of 2" {
		t.Fatalf("progress = %q, %v", progress, ok)
	}

	// The second run still completes and logs once.
	f.clock.Advance(5 * time.Second)
	if entry := f.onlyEntry(t); entry.DurationSec != 5 {
		t.Fatalf("expected 5s entry, got %d", entry.DurationSec)
	}
	if _, err := f.eng.Status(ctx); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession after completion, got %v", err)
	}
}

func TestGazePlannedEndsOnFinalCue(t *testing.T) {
	f, ctx := setupEngine(t)

	sess, err := f.eng.Gaze(ctx, "triangle", 2*time.Second, 3)
	if err != nil {
		t.Fatalf("gaze: %v", err)
	}
	// Three cues over three rounds: nine cues, the last at 16s.
	if sess.Planned != 16*time.Second {
		t.Fatalf("planned = %v, want 16s", sess.Planned)
	}
	f.clock.Advance(16 * time.Second)
	if entry := f.onlyEntry(t); entry.DurationSec != 16 {
		t.Fatalf("elapsed %ds, want 16", entry.DurationSec)
	}
}

func TestInvalidStartLeavesEngineIdle(t *testing.T) {
	f, ctx := setupEngine(t)

	tests := []struct {
		name    string
		start   func() error
		wantErr error
	}{
		{"zero cycles", func() error { _, err := f.eng.Breathe(ctx, "box", 0); return err }, domain.ErrValidation},
		{"unknown pattern", func() error { _, err := f.eng.Breathe(ctx, "lion", 2); return err }, domain.ErrNotFound},
		{"zero timer", func() error { _, err := f.eng.Timer(ctx, 0, "x"); return err }, domain.ErrValidation},
		{"zero prep", func() error { _, err := f.eng.Prep(ctx, 0); return err }, domain.ErrValidation},
		{"negative interval", func() error { _, err := f.eng.Gaze(ctx, "triangle", -time.Second, 2); return err }, domain.ErrValidation},
		{"no prompts", func() error { _, err := f.eng.Exposure(ctx, 30, 0); return err }, domain.ErrValidation},
		{"zero seconds per line", func() error { _, err := f.eng.Practice(ctx, "Stand-up", 0, 1); return err }, domain.ErrValidation},
		{"unknown meeting", func() error { _, err := f.eng.Practice(ctx, "Poker night", 10, 1); return err }, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.start(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if _, err := f.eng.Status(ctx); !errors.Is(err, domain.ErrNoSession) {
				t.Fatalf("engine not idle after failed start: %v", err)
			}
		})
	}
}

func TestNarrationOrder(t *testing.T) {
	f, ctx := setupEngine(t)

	if _, err := f.eng.Exposure(ctx, 3, 2); err != nil {
		t.Fatalf("exposure: %v", err)
	}
	f.clock.Advance(6 * time.Second)

	said := f.narrator.said()
	want := []string{
		"Start speaking. Explain your project in one sentence. You have 3 seconds.",
		"Start speaking. Problem, idea, method, result. You have 3 seconds.",
	}
	if len(said) < 3 {
		t.Fatalf("expected prompts plus a completion line, got %v", said)
	}
	for i, w := range want {
		if said[i] != w {
			t.Fatalf("line %d: got %q, want %q", i, said[i], w)
		}
	}
	done := said[len(said)-1]
	found := false
	for _, l := range speech.CompletionLines() {
		if l == done {
			found = true
		}
	}
	if !found {
		t.Fatalf("last line %q is not a completion line", done)
	}
}

func TestWarmupSpeaksInstructions(t *testing.T) {
	f, ctx := setupEngine(t)

	sess, err := f.eng.Warmup(ctx)
	if err != nil {
		t.Fatalf("warmup: %v", err)
	}
	if sess.Routine != speech.WarmupLabel {
		t.Fatalf("expected routine %q, got %q", speech.WarmupLabel, sess.Routine)
	}
	said := f.narrator.said()
	if len(said) != 1 || said[0] != speech.LineWarmup() {
		t.Fatalf("expected warmup instructions, got %v", said)
	}
}

func TestProgress(t *testing.T) {
	f, ctx := setupEngine(t)

	if _, ok := f.eng.Progress(); ok {
		t.Fatal("expected no progress while idle")
	}

	f.eng.Breathe(ctx, "box", 3)
	f.clock.Advance(17 * time.Second)
	if got, _ := f.eng.Progress(); got != "cycle 2 of 3" {
		t.Fatalf("got %q", got)
	}
	f.eng.Stop(ctx)

	f.eng.Gaze(ctx, "triangle", time.Second, 4)
	f.clock.Advance(3 * time.Second)
	if got, _ := f.eng.Progress(); got != "round 2 of 4" {
		t.Fatalf("got %q", got)
	}
	f.eng.Stop(ctx)

	f.eng.Timer(ctx, 90, "focus")
	f.clock.Advance(30 * time.Second)
	if got, _ := f.eng.Progress(); got != "1 minute left" {
		t.Fatalf("got %q", got)
	}
}

func TestDeck(t *testing.T) {
	f, ctx := setupEngine(t)

	if _, err := f.eng.RepeatLine(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any line, got %v", err)
	}

	first, err := f.eng.NextLine(ctx, "Stand-up")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !strings.HasPrefix(first, "Yesterday:") {
		t.Fatalf("unexpected first line %q", first)
	}

	again, _ := f.eng.RepeatLine(ctx)
	if again != first {
		t.Fatalf("repeat gave %q, want %q", again, first)
	}

	second, _ := f.eng.NextLine(ctx, "")
	if second == first {
		t.Fatal("next line did not advance")
	}

	// Stand-up has 4 own lines plus 4 resets and 3 wraps.
	for i := 0; i < 10; i++ {
		f.eng.NextLine(ctx, "")
	}
	wrapped, _ := f.eng.RepeatLine(ctx)
	if wrapped != first {
		t.Fatalf("deck did not wrap, got %q", wrapped)
	}

	other, _ := f.eng.NextLine(ctx, "1:1")
	if !strings.HasPrefix(other, "30-sec update") {
		t.Fatalf("switching meeting type should restart the deck, got %q", other)
	}

	said := f.narrator.said()
	if said[0] != first {
		t.Fatalf("deck lines should be spoken, got %v", said)
	}
}

func TestRecord(t *testing.T) {
	f, ctx := setupEngine(t)

	tests := []struct {
		name    string
		entry   domain.Entry
		wantErr bool
	}{
		{"valid", domain.Entry{Module: "Quick Calm", DurationSec: 120, Notes: "before review", Rating: 4}, false},
		{"unrated", domain.Entry{Module: "Other", DurationSec: 10}, false},
		{"too short", domain.Entry{Module: "Other", DurationSec: 5}, true},
		{"too long", domain.Entry{Module: "Other", DurationSec: 3601}, true},
		{"bad rating", domain.Entry{Module: "Other", DurationSec: 60, Rating: 6}, true},
		{"no module", domain.Entry{DurationSec: 60}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.eng.Record(ctx, tt.entry)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("record: %v", err)
			}
		})
	}

	history, _ := f.eng.History(ctx)
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if !history[0].Time.Equal(f.start) {
		t.Fatalf("zero time should default to now, got %s", history[0].Time)
	}
}

func TestVoiceControl(t *testing.T) {
	f, _ := setupEngine(t)

	if !f.eng.PauseVoice() || !f.narrator.paused {
		t.Fatal("expected narrator paused")
	}
	if !f.eng.ResumeVoice() || f.narrator.paused {
		t.Fatal("expected narrator resumed")
	}
	f.eng.QuietVoice()
	if f.narrator.cancels != 1 {
		t.Fatalf("expected 1 cancel, got %d", f.narrator.cancels)
	}

	log := logger.New(logger.LevelOff, nil)
	routines, _ := catalog.New(log)
	plain := New(routines, storage.NewMemoryStore(log), &mockJournal{}, log, WithNarrator(silentNarrator{}))
	if plain.PauseVoice() {
		t.Fatal("narrator without pause support reported paused")
	}
}

func TestLibrary(t *testing.T) {
	f, ctx := setupEngine(t)

	patterns, err := f.eng.Patterns(ctx)
	if err != nil || len(patterns) < 3 {
		t.Fatalf("patterns: %v (%d)", err, len(patterns))
	}
	sets, _ := f.eng.CueSets(ctx)
	if len(sets) == 0 {
		t.Fatal("expected cue sets")
	}
	types, _ := f.eng.MeetingTypes(ctx)
	if len(types) != 7 {
		t.Fatalf("expected 7 meeting types, got %d", len(types))
	}
	tips, _ := f.eng.Tips(ctx)
	if len(tips) == 0 {
		t.Fatal("expected tips")
	}
}
