// Package timer implements the timed-cue core: a phase sequencer that walks
// a breathing pattern, a periodic cue caller and a countdown. All three run
// on a Clock and pair every beat with narration and a display update.
package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// Sequencer plays a pattern for a fixed number of cycles.
//
// Every scheduled callback carries the epoch of the run that created it and
// the pending timer is stopped on teardown, so nothing from a stopped run
// reaches the sinks. Sinks are called with the sequencer's lock held and
// must not call back into it.
type Sequencer struct {
	narrator domain.Narrator
	display  domain.Display
	log      *logger.Logger
	settings

	mu    sync.Mutex
	epoch uint64
	run   *sequencerRun
}

type sequencerRun struct {
	epoch      uint64
	pattern    domain.Pattern
	target     int
	cycle      int
	phase      int
	phaseStart time.Time
	started    time.Time
	events     int
	pending    Stopper
}

// New creates a sequencer. narrator may be nil for a silent run.
func New(narrator domain.Narrator, display domain.Display, log *logger.Logger, opts ...Option) *Sequencer {
	if display == nil {
		display = nopDisplay{}
	}
	return &Sequencer{
		narrator: narrator,
		display:  display,
		log:      log,
		settings: defaultSettings(opts),
	}
}

// Start begins playing p for the given number of cycles. Invalid input is
// rejected before any state changes. Starting while a run is active is a
// no-op.
func (s *Sequencer) Start(p domain.Pattern, cycles int) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if cycles < 1 {
		return fmt.Errorf("%d cycles: %w", cycles, domain.ErrInvalidCount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		s.log.Debug("sequencer already running %q, ignoring start", s.run.pattern.Name)
		return nil
	}

	pattern := p
	pattern.Phases = append([]domain.Phase(nil), p.Phases...)

	s.epoch++
	now := s.clock.Now()
	s.run = &sequencerRun{
		epoch:      s.epoch,
		pattern:    pattern,
		target:     cycles,
		phaseStart: now,
		started:    now,
	}
	s.log.Info("sequencer started: %s x%d (%ds per cycle)", pattern.Name, cycles, pattern.CycleSeconds())
	s.beginPhase(s.run)
	return nil
}

// Stop halts playback, cancels narration and resets the display. Calling
// Stop while idle does nothing.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return
	}
	s.log.Info("sequencer stopped at cycle %d phase %d", s.run.cycle+1, s.run.phase+1)
	s.teardown()
}

// Running reports whether a run is active.
func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil
}

// Position returns the zero-based cycle and phase of the active run.
func (s *Sequencer) Position() (cycle, phase int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return 0, 0, false
	}
	return s.run.cycle, s.run.phase, true
}

// beginPhase narrates, then displays, the current phase and schedules its
// first countdown tick. Caller holds s.mu.
func (s *Sequencer) beginPhase(r *sequencerRun) {
	ph := r.pattern.Phases[r.phase]
	r.events++

	s.speak(ph.Narration())
	s.display.Update(ph.Label, ph.Visual, ph.Seconds)
	if s.chimer != nil {
		s.chimer.Chime()
	}
	s.log.Debug("phase %d/%d cycle %d/%d: %s %ds",
		r.phase+1, len(r.pattern.Phases), r.cycle+1, r.target, ph.Label, ph.Seconds)

	s.schedule(r, 1)
}

// schedule arms tick k of the current phase. Deadlines are offsets from
// the phase start so the countdown and the phase boundary never drift
// apart. Caller holds s.mu.
func (s *Sequencer) schedule(r *sequencerRun, k int) {
	at := r.phaseStart.Add(time.Duration(k) * time.Second)
	epoch := r.epoch
	r.pending = s.clock.AfterFunc(at.Sub(s.clock.Now()), func() {
		s.tick(epoch, k)
	})
}

func (s *Sequencer) tick(epoch uint64, k int) {
	s.mu.Lock()

	r := s.run
	if r == nil || r.epoch != epoch {
		s.mu.Unlock()
		return
	}

	ph := r.pattern.Phases[r.phase]
	remaining := ph.Seconds - k
	s.display.Update(ph.Label, ph.Visual, remaining)
	if remaining > 0 {
		s.schedule(r, k+1)
		s.mu.Unlock()
		return
	}

	r.phaseStart = r.phaseStart.Add(time.Duration(ph.Seconds) * time.Second)
	r.phase++
	if r.phase == len(r.pattern.Phases) {
		r.phase = 0
		r.cycle++
	}

	if r.cycle >= r.target {
		report := Report{
			Label:   r.pattern.Name,
			Started: r.started,
			Elapsed: r.phaseStart.Sub(r.started),
			Cycles:  r.cycle,
			Events:  r.events,
		}
		s.log.Info("sequencer finished: %s x%d", r.pattern.Name, r.target)
		s.teardown()
		s.mu.Unlock()
		s.complete(report)
		return
	}

	s.beginPhase(r)
	s.mu.Unlock()
}

// teardown ends the active run. Caller holds s.mu.
func (s *Sequencer) teardown() {
	if p := s.run.pending; p != nil {
		p.Stop()
	}
	s.epoch++
	s.run = nil
	if s.narrator != nil {
		s.narrator.Cancel()
	}
	s.display.Reset()
}

func (s *Sequencer) speak(text string) {
	if s.narrator == nil || text == "" {
		return
	}
	if err := s.narrator.Speak(text); err != nil {
		s.log.Warn("narration failed for %q: %v", text, err)
	}
}

func (s *Sequencer) complete(r Report) {
	if s.onComplete != nil {
		s.onComplete(r)
	}
}
