package timer_test

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
	"github.com/hammamikhairi/calmcoach/internal/timer"
	"github.com/hammamikhairi/calmcoach/internal/timer/timertest"
)

var epoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

var box = domain.Pattern{
	ID:   "box",
	Name: "Box",
	Phases: []domain.Phase{
		{Label: "Inhale", Seconds: 4, Visual: domain.VisualExpand},
		{Label: "Hold", Seconds: 4, Visual: domain.VisualHold},
		{Label: "Exhale", Seconds: 4, Visual: domain.VisualShrink},
		{Label: "Hold", Seconds: 4, Visual: domain.VisualHold},
	},
}

type update struct {
	label     string
	visual    domain.Visual
	remaining int
	at        time.Duration
}

// recorder implements Narrator, Display, RoundIndicator and Chimer and
// keeps one ordered event log across all of them.
type recorder struct {
	mu      sync.Mutex
	clock   *timertest.ManualClock
	failErr error

	events    []string
	updates   []update
	spoken    []string
	rounds    []string
	resets    int
	cancels   int
	chimes    int
	completed []timer.Report
}

func newRecorder(clock *timertest.ManualClock) *recorder {
	return &recorder{clock: clock}
}

func (r *recorder) Speak(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "speak:"+text)
	if r.failErr != nil {
		return r.failErr
	}
	r.spoken = append(r.spoken, text)
	return nil
}

func (r *recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
}

func (r *recorder) Update(label string, v domain.Visual, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("update:%s:%d", label, remaining))
	r.updates = append(r.updates, update{
		label:     label,
		visual:    v,
		remaining: remaining,
		at:        r.clock.Now().Sub(epoch),
	})
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "reset")
	r.resets++
}

func (r *recorder) ShowRound(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := fmt.Sprintf("Round %d of %d", current, total)
	r.events = append(r.events, s)
	r.rounds = append(r.rounds, s)
}

func (r *recorder) Chime() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chimes++
}

func (r *recorder) onComplete(rep timer.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "complete")
	r.completed = append(r.completed, rep)
}

func (r *recorder) updateCopy() []update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]update(nil), r.updates...)
}

var errTTSDown = errors.New("tts down")

func quietLog() *logger.Logger {
	return logger.New(logger.LevelOff, nil)
}

// leakyClock hands out timers that cannot be cancelled, so only the epoch
// check stands between a stale callback and the sinks.
type leakyClock struct {
	*timertest.ManualClock
}

type leakyStopper struct{}

func (leakyStopper) Stop() bool { return false }

func (c leakyClock) AfterFunc(d time.Duration, f func()) timer.Stopper {
	c.ManualClock.AfterFunc(d, f)
	return leakyStopper{}
}
