package timer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// Caller announces cues round-robin at a fixed interval. One round is one
// pass through the cue list. The tick that announces the last cue of the
// last round also tears the run down and reports completion.
type Caller struct {
	narrator domain.Narrator
	display  domain.Display
	log      *logger.Logger
	settings

	mu    sync.Mutex
	epoch uint64
	run   *callerRun
}

type callerRun struct {
	epoch     uint64
	cues      []string
	interval  time.Duration
	target    int
	index     int
	completed int
	started   time.Time
	pending   Stopper
}

// NewCaller creates a cue caller. narrator may be nil.
func NewCaller(narrator domain.Narrator, display domain.Display, log *logger.Logger, opts ...Option) *Caller {
	if display == nil {
		display = nopDisplay{}
	}
	return &Caller{
		narrator: narrator,
		display:  display,
		log:      log,
		settings: defaultSettings(opts),
	}
}

// Start announces cue 0 immediately and one cue per interval afterwards.
func (c *Caller) Start(cues []string, interval time.Duration, rounds int) error {
	if len(cues) == 0 {
		return fmt.Errorf("no cues: %w", domain.ErrEmptyPattern)
	}
	if interval <= 0 {
		return fmt.Errorf("interval %s: %w", interval, domain.ErrInvalidDuration)
	}
	if rounds < 1 {
		return fmt.Errorf("%d rounds: %w", rounds, domain.ErrInvalidCount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil {
		c.log.Debug("caller already running, ignoring start")
		return nil
	}

	c.epoch++
	c.run = &callerRun{
		epoch:    c.epoch,
		cues:     append([]string(nil), cues...),
		interval: interval,
		target:   rounds,
		started:  c.clock.Now(),
	}
	c.log.Info("caller started: %d cues every %s, %d rounds", len(cues), interval, rounds)

	c.showRound(1, rounds)
	c.announce(c.run)
	if c.run.completed >= c.run.target {
		// A single cue for a single round is done already. Completion is
		// still reported from a callback, never from inside Start.
		epoch := c.run.epoch
		c.run.pending = c.clock.AfterFunc(0, func() { c.tick(epoch, 0) })
		return nil
	}
	c.schedule(c.run, 1)
	return nil
}

// Stop cancels the pending tick, cancels narration and resets the display.
func (c *Caller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return
	}
	c.log.Info("caller stopped after %d cues", c.run.index)
	c.teardown()
}

// Running reports whether a run is active.
func (c *Caller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil
}

// Round returns the one-based round in progress.
func (c *Caller) Round() (current, total int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return 0, 0, false
	}
	return min(c.run.completed+1, c.run.target), c.run.target, true
}

// announce plays the next cue and counts a round when the index wraps.
// Caller holds c.mu.
func (c *Caller) announce(r *callerRun) {
	text := r.cues[r.index%len(r.cues)]

	if c.narrator != nil {
		if err := c.narrator.Speak(text); err != nil {
			c.log.Warn("narration failed for %q: %v", text, err)
		}
	}
	c.display.Update(text, domain.VisualNeutral, int(math.Ceil(r.interval.Seconds())))
	if c.chimer != nil {
		c.chimer.Chime()
	}

	r.index++
	if r.index%len(r.cues) == 0 {
		r.completed++
		c.log.Debug("round %d/%d complete", r.completed, r.target)
		if r.completed < r.target {
			c.showRound(r.completed+1, r.target)
		}
	}
}

// schedule arms tick n at started + n*interval. Caller holds c.mu.
func (c *Caller) schedule(r *callerRun, n int) {
	at := r.started.Add(time.Duration(n) * r.interval)
	epoch := r.epoch
	r.pending = c.clock.AfterFunc(at.Sub(c.clock.Now()), func() {
		c.tick(epoch, n)
	})
}

// tick announces cue n and finishes the run once the target round count is
// reached.
func (c *Caller) tick(epoch uint64, n int) {
	c.mu.Lock()

	r := c.run
	if r == nil || r.epoch != epoch {
		c.mu.Unlock()
		return
	}

	if r.completed < r.target {
		c.announce(r)
	}
	if r.completed < r.target {
		c.schedule(r, n+1)
		c.mu.Unlock()
		return
	}

	report := Report{
		Started: r.started,
		Elapsed: time.Duration(n) * r.interval,
		Cycles:  r.completed,
		Events:  r.index,
	}
	c.log.Info("caller finished: %d rounds", r.completed)
	c.teardown()
	c.mu.Unlock()
	if c.onComplete != nil {
		c.onComplete(report)
	}
}

func (c *Caller) showRound(current, total int) {
	if ri, ok := c.display.(domain.RoundIndicator); ok {
		ri.ShowRound(current, total)
	}
}

// teardown ends the active run. Caller holds c.mu.
func (c *Caller) teardown() {
	if p := c.run.pending; p != nil {
		p.Stop()
	}
	c.epoch++
	c.run = nil
	if c.narrator != nil {
		c.narrator.Cancel()
	}
	c.display.Reset()
}
