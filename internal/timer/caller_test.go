package timer_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/timer"
	"github.com/hammamikhairi/calmcoach/internal/timer/timertest"
)

var gaze = []string{"Left eye", "Right eye", "Eyebrows"}

func newCaller(clock timer.Clock, rec *recorder) *timer.Caller {
	return timer.NewCaller(rec, rec, quietLog(),
		timer.WithClock(clock),
		timer.WithCompletion(rec.onComplete),
	)
}

func TestCallerTriangleGaze(t *testing.T) {
	clock := timertest.New(epoch)
	rec := newRecorder(clock)
	caller := newCaller(clock, rec)

	if err := caller.Start(gaze, 3*time.Second, 2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(time.Minute)

	want := []string{"Left eye", "Right eye", "Eyebrows", "Left eye", "Right eye", "Eyebrows"}
	if !reflect.DeepEqual(rec.spoken, want) {
		t.Fatalf("announcements = %v, want %v", rec.spoken, want)
	}
	for i, u := range rec.updateCopy() {
		if u.at != time.Duration(i*3)*time.Second {
			t.Errorf("cue %d shown at %s, want %ds", i, u.at, i*3)
		}
		if u.visual != domain.VisualNeutral || u.remaining != 3 {
			t.Errorf("cue %d: unexpected %s/%d", i, u.visual, u.remaining)
		}
	}

	wantEvents := []string{
		"Round 1 of 2",
		"speak:Left eye", "update:Left eye:3",
		"speak:Right eye", "update:Right eye:3",
		"speak:Eyebrows", "update:Eyebrows:3",
		"Round 2 of 2",
		"speak:Left eye", "update:Left eye:3",
		"speak:Right eye", "update:Right eye:3",
		"speak:Eyebrows", "update:Eyebrows:3",
		"reset",
		"complete",
	}
	if !reflect.DeepEqual(rec.events, wantEvents) {
		t.Errorf("events:\n got  %v\n want %v", rec.events, wantEvents)
	}

	if len(rec.completed) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(rec.completed))
	}
	if rep := rec.completed[0]; rep.Events != 6 || rep.Cycles != 2 || rep.Elapsed != 15*time.Second {
		t.Errorf("unexpected report %+v", rep)
	}
	if caller.Running() {
		t.Error("caller should stop after final round")
	}
}

func TestCallerFinishesOnFinalCue(t *testing.T) {
	clock := timertest.New(epoch)
	rec := newRecorder(clock)
	caller := newCaller(clock, rec)

	if err := caller.Start(gaze, 3*time.Second, 2); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.Advance(14999 * time.Millisecond)
	if !caller.Running() || len(rec.spoken) != 5 || len(rec.completed) != 0 {
		t.Fatalf("before final cue: running=%v spoken=%d completions=%d",
			caller.Running(), len(rec.spoken), len(rec.completed))
	}

	clock.Advance(time.Millisecond)
	if caller.Running() {
		t.Error("caller still running after the final cue of the final round")
	}
	if len(rec.spoken) != 6 || len(rec.completed) != 1 || rec.resets != 1 {
		t.Errorf("spoken=%d completions=%d resets=%d, want 6, 1, 1",
			len(rec.spoken), len(rec.completed), rec.resets)
	}
	if _, _, ok := caller.Round(); ok {
		t.Error("Round should report no run after completion")
	}
	if clock.Pending() != 0 {
		t.Errorf("pending timers after completion: %d", clock.Pending())
	}
}

func TestCallerSingleCueCompletesAfterStart(t *testing.T) {
	clock := timertest.New(epoch)
	rec := newRecorder(clock)
	caller := newCaller(clock, rec)

	if err := caller.Start([]string{"Breathe"}, 2*time.Second, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(rec.completed) != 0 {
		t.Fatal("completion must not fire inside Start")
	}

	clock.Advance(0)
	if len(rec.completed) != 1 || caller.Running() {
		t.Fatalf("completions=%d running=%v, want 1 and false", len(rec.completed), caller.Running())
	}
	if rep := rec.completed[0]; rep.Elapsed != 0 || rep.Events != 1 || rep.Cycles != 1 {
		t.Errorf("unexpected report %+v", rep)
	}
}

func TestCallerAnnouncesFirstCueImmediately(t *testing.T) {
	clock := timertest.New(epoch)
	rec := newRecorder(clock)
	caller := newCaller(clock, rec)

	if err := caller.Start(gaze, 3*time.Second, 8); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(rec.spoken) != 1 || rec.spoken[0] != "Left eye" {
		t.Fatalf("expected cue 0 before any interval, got %v", rec.spoken)
	}

	clock.Advance(2999 * time.Millisecond)
	if len(rec.spoken) != 1 {
		t.Errorf("second cue came early: %v", rec.spoken)
	}
	caller.Stop()
}

func TestCallerAnnouncementCount(t *testing.T) {
	tests := []struct {
		cues   []string
		rounds int
	}{
		{[]string{"one"}, 1},
		{[]string{"one"}, 5},
		{gaze, 1},
		{gaze, 8},
		{[]string{"a", "b", "c", "d", "e"}, 3},
	}

	for _, tt := range tests {
		clock := timertest.New(epoch)
		rec := newRecorder(clock)
		caller := newCaller(clock, rec)

		if err := caller.Start(tt.cues, 2*time.Second, tt.rounds); err != nil {
			t.Fatalf("Start: %v", err)
		}
		clock.Advance(time.Hour)

		if got, want := len(rec.spoken), tt.rounds*len(tt.cues); got != want {
			t.Errorf("%d cues x %d rounds: %d announcements, want %d", len(tt.cues), tt.rounds, got, want)
		}
		if len(rec.rounds) != tt.rounds {
			t.Errorf("expected %d round indications, got %v", tt.rounds, rec.rounds)
		}
		if len(rec.completed) != 1 {
			t.Errorf("expected 1 completion, got %d", len(rec.completed))
		}
	}
}

func TestCallerStop(t *testing.T) {
	clock := timertest.New(epoch)
	rec := newRecorder(clock)
	caller := newCaller(clock, rec)

	if err := caller.Start(gaze, 3*time.Second, 4); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(7 * time.Second)
	caller.Stop()
	caller.Stop()
	clock.Advance(time.Minute)

	if len(rec.spoken) != 3 {
		t.Errorf("expected 3 announcements before stop, got %d", len(rec.spoken))
	}
	if rec.resets != 1 || rec.cancels != 1 {
		t.Errorf("resets=%d cancels=%d, want 1 and 1", rec.resets, rec.cancels)
	}
	if len(rec.completed) != 0 {
		t.Error("stop must not report completion")
	}
	if clock.Pending() != 0 {
		t.Errorf("pending timers after stop: %d", clock.Pending())
	}
}

func TestCallerIdempotentStart(t *testing.T) {
	clock := timertest.New(epoch)
	rec := newRecorder(clock)
	caller := newCaller(clock, rec)

	if err := caller.Start(gaze, time.Second, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := caller.Start([]string{"other"}, time.Second, 9); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	clock.Advance(time.Minute)

	if !reflect.DeepEqual(rec.spoken, gaze) {
		t.Errorf("second start leaked into run: %v", rec.spoken)
	}
}

func TestCallerRound(t *testing.T) {
	clock := timertest.New(epoch)
	rec := newRecorder(clock)
	caller := newCaller(clock, rec)

	if err := caller.Start(gaze, time.Second, 2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if cur, total, ok := caller.Round(); !ok || cur != 1 || total != 2 {
		t.Errorf("Round = %d/%d %v", cur, total, ok)
	}
	clock.Advance(3 * time.Second)
	if cur, _, _ := caller.Round(); cur != 2 {
		t.Errorf("expected round 2, got %d", cur)
	}
	clock.Advance(1500 * time.Millisecond)
	if cur, _, ok := caller.Round(); !ok || cur != 2 {
		t.Errorf("round must not exceed total, got %d", cur)
	}
	clock.Advance(time.Second)
	if _, _, ok := caller.Round(); ok {
		t.Error("run should be over once the last cue is announced")
	}
}

func TestCallerValidation(t *testing.T) {
	clock := timertest.New(epoch)
	rec := newRecorder(clock)
	caller := newCaller(clock, rec)

	if err := caller.Start(nil, time.Second, 1); !errors.Is(err, domain.ErrEmptyPattern) {
		t.Errorf("expected ErrEmptyPattern, got %v", err)
	}
	if err := caller.Start(gaze, 0, 1); !errors.Is(err, domain.ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}
	if err := caller.Start(gaze, time.Second, 0); !errors.Is(err, domain.ErrInvalidCount) {
		t.Errorf("expected ErrInvalidCount, got %v", err)
	}
	if caller.Running() || len(rec.events) != 0 {
		t.Error("rejected starts must not touch state or sinks")
	}
}
