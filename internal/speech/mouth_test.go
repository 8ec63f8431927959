package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.fail {
		return nil, errors.New("synth down")
	}
	return []byte(text), nil
}

func (f *fakeSynth) CacheKey() string { return "test-voice" }

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeSink blocks in Play until Stop is called or release is closed.
type fakeSink struct {
	mu      sync.Mutex
	played  []string
	stops   int
	paused  bool
	release chan struct{}
	stopCh  chan struct{}
}

func newFakeSink(blocking bool) *fakeSink {
	s := &fakeSink{release: make(chan struct{}), stopCh: make(chan struct{}, 16)}
	if !blocking {
		close(s.release)
	}
	return s
}

func (s *fakeSink) Play(ctx context.Context, wav []byte) error {
	if ctx.Err() != nil {
		return nil
	}
	s.mu.Lock()
	s.played = append(s.played, string(wav))
	s.mu.Unlock()
	select {
	case <-s.release:
	case <-s.stopCh:
	case <-ctx.Done():
	}
	return nil
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
}

func (s *fakeSink) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *fakeSink) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *fakeSink) playedCopy() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.played...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestMouth(t *testing.T, synth *fakeSynth, sink *fakeSink) *Mouth {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m := NewMouth(synth, sink, logger.New(logger.LevelOff, nil))
	m.Start(ctx)
	return m
}

func TestMouthSpeaks(t *testing.T) {
	sink := newFakeSink(false)
	m := newTestMouth(t, &fakeSynth{}, sink)

	if err := m.Speak("Inhale"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitFor(t, "playback", func() bool { return len(sink.playedCopy()) == 1 })
	if got := sink.playedCopy()[0]; got != "Inhale" {
		t.Errorf("played %q, want Inhale", got)
	}
	waitFor(t, "idle", func() bool { return !m.IsSpeaking() })
	if m.LastSpoken() != "Inhale" {
		t.Errorf("LastSpoken = %q", m.LastSpoken())
	}
}

func TestMouthUnavailableOutsideStart(t *testing.T) {
	m := NewMouth(&fakeSynth{}, newFakeSink(false), logger.New(logger.LevelOff, nil))
	if err := m.Speak("Inhale"); !errors.Is(err, domain.ErrNarrationUnavailable) {
		t.Fatalf("Speak before Start = %v, want ErrNarrationUnavailable", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	if err := m.Speak("Inhale"); err != nil {
		t.Fatalf("Speak after Start: %v", err)
	}

	cancel()
	waitFor(t, "loop exit", func() bool {
		return errors.Is(m.Speak("Exhale"), domain.ErrNarrationUnavailable)
	})
}

func TestMouthSupersedes(t *testing.T) {
	sink := newFakeSink(true)
	m := newTestMouth(t, &fakeSynth{}, sink)

	m.Say("Inhale")
	waitFor(t, "first clip", func() bool { return len(sink.playedCopy()) == 1 })

	m.Say("Hold")
	waitFor(t, "second clip", func() bool { return len(sink.playedCopy()) == 2 })

	played := sink.playedCopy()
	if played[1] != "Hold" {
		t.Errorf("expected Hold to replace Inhale, got %v", played)
	}
	sink.mu.Lock()
	stops := sink.stops
	sink.mu.Unlock()
	if stops == 0 {
		t.Error("expected current clip to be stopped")
	}
	m.Interrupt()
}

func TestMouthInterruptDropsPending(t *testing.T) {
	sink := newFakeSink(false)
	m := NewMouth(&fakeSynth{}, sink, logger.New(logger.LevelOff, nil))

	// Not started yet, so the slot only fills.
	m.Say("Exhale")
	m.Interrupt()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	m.signal()

	time.Sleep(50 * time.Millisecond)
	if got := sink.playedCopy(); len(got) != 0 {
		t.Errorf("interrupted utterance played: %v", got)
	}
}

func TestMouthInterruptBeforePlaybackStarts(t *testing.T) {
	sink := newFakeSink(false)
	m := NewMouth(&fakeSynth{}, sink, logger.New(logger.LevelOff, nil))

	m.mu.Lock()
	m.gen++
	u := &utterance{text: "Inhale", gen: m.gen}
	m.mu.Unlock()

	// The slot is claimed, then an interrupt lands before Play is reached.
	playCtx, cancel, ok := m.claim(context.Background(), u)
	if !ok {
		t.Fatal("claim of the current utterance failed")
	}
	defer cancel()
	m.Interrupt()

	if playCtx.Err() == nil {
		t.Fatal("interrupt did not cancel the claimed playback")
	}
	if err := sink.Play(playCtx, []byte(u.text)); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := sink.playedCopy(); len(got) != 0 {
		t.Fatalf("interrupted clip was played: %v", got)
	}
	if _, _, ok := m.claim(context.Background(), u); ok {
		t.Fatal("claim succeeded for a superseded utterance")
	}
}

func TestMouthPauseHoldsSlot(t *testing.T) {
	sink := newFakeSink(false)
	m := newTestMouth(t, &fakeSynth{}, sink)

	m.Pause()
	m.Say("Left eye")
	time.Sleep(50 * time.Millisecond)
	if len(sink.playedCopy()) != 0 {
		t.Fatal("paused mouth should not start a new utterance")
	}
	if !m.Paused() {
		t.Error("expected Paused() true")
	}

	m.Resume()
	waitFor(t, "resumed playback", func() bool { return len(sink.playedCopy()) == 1 })
}

func TestMouthUsesCache(t *testing.T) {
	synth := &fakeSynth{}
	sink := newFakeSink(false)
	m := newTestMouth(t, synth, sink)

	m.Say("Hold")
	waitFor(t, "first", func() bool { return len(sink.playedCopy()) == 1 })
	waitFor(t, "idle", func() bool { return !m.IsSpeaking() })
	m.Say("Hold")
	waitFor(t, "second", func() bool { return len(sink.playedCopy()) == 2 })

	if synth.callCount() != 1 {
		t.Errorf("expected one synthesis, got %d", synth.callCount())
	}
}

func TestMouthSynthesisFailureIsQuiet(t *testing.T) {
	sink := newFakeSink(false)
	m := newTestMouth(t, &fakeSynth{fail: true}, sink)

	if err := m.Speak("Inhale"); err != nil {
		t.Fatalf("Speak should not surface synthesis errors: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if len(sink.playedCopy()) != 0 {
		t.Error("nothing should play when synthesis fails")
	}
}

func TestSplitChunks(t *testing.T) {
	m := &Mouth{chunkSize: 30}
	text := "Hum ten times. Then lip trill. Then siren up and down. Now say your line."
	chunks := m.splitChunks(text)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %v", chunks)
	}
	for _, c := range chunks {
		if c == "" {
			t.Error("empty chunk")
		}
	}

	short := m.splitChunks("Inhale")
	if len(short) != 1 || short[0] != "Inhale" {
		t.Errorf("short text split: %v", short)
	}
}
