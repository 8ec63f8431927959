package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hammamikhairi/calmcoach/internal/config"
	"github.com/hammamikhairi/calmcoach/internal/conversation"
	"github.com/hammamikhairi/calmcoach/internal/display"
	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/engine"
	"github.com/hammamikhairi/calmcoach/internal/journal"
	"github.com/hammamikhairi/calmcoach/internal/logger"
	"github.com/hammamikhairi/calmcoach/internal/speech"
)

// runInteractive starts the full-screen coach: keyboard and voice commands
// drive the engine while the breathing display animates.
func runInteractive(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d, err := buildDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.Close()

	ui := display.NewUI(d.store)
	notifier := conversation.NewCLINotifier(d.log.Component("notify"), ui.Printf)
	eng := d.newEngine(ui, notifier)
	defer eng.Close()

	ear, err := d.newEar(ctx)
	if err != nil {
		d.log.Error("voice input disabled: %v", err)
	}

	// Reload notices are spoken as well as printed. Session completion
	// stays text-only because the engine speaks its own closing line.
	announcer := speech.NewSpeakingNotifier(notifier, d.narrator, d.log.Component("announce"))
	d.watchRoutines(ctx, func(err error) {
		if err != nil {
			announcer.NotifyUrgent(ctx, fmt.Sprintf("Routine reload failed: %v", err))
			return
		}
		announcer.Notify(ctx, "Routines reloaded.")
	})

	ui.Println(display.RenderBanner())

	app := &cliApp{
		engine: eng,
		parser: conversation.NewKeywordParser(d.log.Component("parser")),
		coach:  d.cfg.Coach,
		mouth:  d.mouth,
		ear:    ear,
		ui:     ui,
		log:    d.log.Component("app"),
	}

	go func() {
		ui.WaitReady()
		app.run(ctx)
		ui.Quit()
	}()

	return ui.Run()
}

// cliApp is the interactive read-eval loop.
type cliApp struct {
	engine *engine.Engine
	parser *conversation.KeywordParser
	coach  config.CoachConfig
	mouth  *speech.Mouth
	ear    *speech.Ear
	ui     *display.UI
	log    *logger.Logger

	voiceCh <-chan string
}

// say prints a coach line and speaks it when TTS is on.
func (a *cliApp) say(text string) {
	a.ui.PrintChat(text)
	if a.mouth != nil {
		a.mouth.Say(text)
	}
}

func (a *cliApp) run(ctx context.Context) {
	a.say(speech.LineWelcome())
	a.ui.Println("")

	if a.ear != nil {
		a.voiceCh = a.ear.C()
	}

	for {
		input, ok := a.next(ctx)
		if !ok {
			return
		}
		if input == "" {
			continue
		}

		var session *domain.Session
		if s, err := a.engine.Status(ctx); err == nil {
			session = s
		}

		intent, err := a.parser.Parse(ctx, input, session)
		if err != nil {
			a.log.Error("parsing input: %v", err)
			continue
		}

		a.log.Debug("intent: %s (payload=%q args=%v)", intent.Type, intent.Payload, intent.Args)
		if !a.handleIntent(ctx, intent) {
			return
		}
	}
}

// next waits for a line from the keyboard or the microphone.
func (a *cliApp) next(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case <-a.ui.QuitChan():
		return "", false
	case input, ok := <-a.ui.InputChan():
		if !ok {
			return "", false
		}
		return strings.TrimSpace(input), true
	case input := <-a.voiceCh:
		a.ui.PrintVoice(input)
		return strings.TrimSpace(input), true
	}
}

// handleIntent dispatches one command. It returns false to leave the loop.
func (a *cliApp) handleIntent(ctx context.Context, intent *domain.Intent) bool {
	// Starting or stopping something cuts off whatever is being said.
	switch intent.Type {
	case domain.IntentQuickCalm, domain.IntentBreathe, domain.IntentGaze,
		domain.IntentWarmup, domain.IntentExposure, domain.IntentPractice,
		domain.IntentGlute, domain.IntentPrep, domain.IntentTimer, domain.IntentStop:
		if a.mouth != nil {
			a.mouth.Interrupt()
		}
	}

	switch intent.Type {
	case domain.IntentHelp:
		a.showHelp()
	case domain.IntentList:
		a.showLibrary(ctx)
	case domain.IntentQuickCalm, domain.IntentBreathe, domain.IntentGaze,
		domain.IntentWarmup, domain.IntentExposure, domain.IntentPractice,
		domain.IntentGlute, domain.IntentPrep, domain.IntentTimer:
		a.start(startRoutine(ctx, a.engine, a.coach, intent))
	case domain.IntentNextLine:
		a.nextLine(ctx, intent.Payload)
	case domain.IntentRepeatLine:
		a.repeatLine(ctx)
	case domain.IntentStop:
		a.stop(ctx)
	case domain.IntentPauseVoice:
		if a.engine.PauseVoice() {
			a.ui.PrintHint(speech.LinePaused())
		} else {
			a.ui.PrintHint("voice is off")
		}
	case domain.IntentResumeVoice:
		if a.engine.ResumeVoice() {
			a.say(speech.LineResumed())
		} else {
			a.ui.PrintHint("voice is off")
		}
	case domain.IntentQuietVoice:
		a.engine.QuietVoice()
	case domain.IntentStatus:
		a.status(ctx)
	case domain.IntentLog:
		a.showLog(ctx)
	case domain.IntentTips:
		a.showTips(ctx, intent.Payload)
	case domain.IntentPRA:
		a.praCard(ctx)
	case domain.IntentQuit:
		a.quit(ctx)
		return false
	default:
		a.say(speech.LineUnknown(intent.Payload))
	}
	return true
}

// start reports the outcome of any routine start.
func (a *cliApp) start(sess *domain.Session, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionActive):
		a.say(speech.LineAlreadyActive())
	case errors.Is(err, domain.ErrNotFound):
		a.ui.PrintUrgent(err.Error())
		a.ui.PrintHint("say list to see what is available")
	case err != nil:
		a.ui.PrintUrgent(err.Error())
	default:
		a.ui.PrintHeader(fmt.Sprintf("%s: %s", sess.Module, sess.Notes))
		if intro := introLine(sess); intro != "" {
			a.ui.PrintInstruction(intro)
		}
		a.ui.PrintHint(fmt.Sprintf("about %s, say stop to end early", formatDuration(sess.Planned)))
	}
}

// errNotRoutine is returned by startRoutine for intents that start nothing.
var errNotRoutine = errors.New("not a routine")

// startRoutine starts the routine an intent names, filling missing
// arguments from the coach defaults.
func startRoutine(ctx context.Context, eng *engine.Engine, coach config.CoachConfig, intent *domain.Intent) (*domain.Session, error) {
	switch intent.Type {
	case domain.IntentQuickCalm:
		return eng.QuickCalm(ctx)
	case domain.IntentBreathe:
		pattern := intent.Payload
		if pattern == "" {
			pattern = coach.Pattern
		}
		return eng.Breathe(ctx, pattern, argInt(intent.Args, 0, coach.BreathCycles))
	case domain.IntentGaze:
		rounds := argInt(intent.Args, 0, coach.GazeRounds)
		interval := time.Duration(argInt(intent.Args, 1, 0)) * time.Second
		if interval == 0 {
			interval = coach.GazeInterval
		}
		return eng.Gaze(ctx, intent.Payload, interval, rounds)
	case domain.IntentWarmup:
		return eng.Warmup(ctx)
	case domain.IntentExposure:
		return eng.Exposure(ctx,
			argInt(intent.Args, 0, coach.ExposureSeconds),
			argInt(intent.Args, 1, coach.ExposurePrompts))
	case domain.IntentPractice:
		meeting := intent.Payload
		if meeting == "" {
			meeting = coach.MeetingType
		}
		return eng.Practice(ctx, meeting,
			argInt(intent.Args, 0, coach.PracticeSeconds),
			argInt(intent.Args, 1, coach.PracticeRounds))
	case domain.IntentGlute:
		return eng.Glute(ctx)
	case domain.IntentPrep:
		return eng.Prep(ctx, argInt(intent.Args, 0, coach.PrepMinutes))
	case domain.IntentTimer:
		secs, err := parseSeconds(intent.Payload)
		if err != nil {
			return nil, err
		}
		label := ""
		if len(intent.Args) > 0 {
			label = intent.Args[0]
		}
		return eng.Timer(ctx, secs, label)
	default:
		return nil, fmt.Errorf("%s: %w", intent.Type, errNotRoutine)
	}
}

func (a *cliApp) stop(ctx context.Context) {
	sess, err := a.engine.Stop(ctx)
	if errors.Is(err, domain.ErrNoSession) {
		a.say(speech.LineNothingRunning())
		return
	}
	if err != nil {
		a.ui.PrintUrgent(err.Error())
		return
	}
	a.say(speech.LineStopped())
	a.ui.PrintHint(fmt.Sprintf("%s stopped, not logged", sess.Module))
}

func (a *cliApp) status(ctx context.Context) {
	sess, err := a.engine.Status(ctx)
	if err != nil {
		a.ui.PrintHint(speech.LineNothingRunning())
		return
	}
	a.ui.PrintHeader(sess.Module)
	a.ui.PrintInstruction(fmt.Sprintf("  routine: %s", sess.Routine))
	if sess.Notes != "" {
		a.ui.PrintInstruction(fmt.Sprintf("  notes:   %s", sess.Notes))
	}
	if p, ok := a.engine.Progress(); ok {
		a.ui.PrintInstruction(fmt.Sprintf("  %s", p))
	}
}

func (a *cliApp) nextLine(ctx context.Context, meeting string) {
	line, err := a.engine.NextLine(ctx, meeting)
	if err != nil {
		a.ui.PrintUrgent(err.Error())
		return
	}
	a.ui.PrintChat(line)
}

func (a *cliApp) repeatLine(ctx context.Context) {
	line, err := a.engine.RepeatLine(ctx)
	if err != nil {
		a.ui.PrintHint("say next line first")
		return
	}
	a.ui.PrintChat(line)
}

func (a *cliApp) showLibrary(ctx context.Context) {
	patterns, err := a.engine.Patterns(ctx)
	if err != nil {
		a.ui.PrintUrgent(err.Error())
		return
	}
	a.ui.PrintHeader("Breathing patterns:")
	for _, p := range patterns {
		a.ui.PrintInstruction(fmt.Sprintf("  %-8s %-28s %ds/cycle", p.ID, p.Name, p.CycleSeconds))
	}

	if sets, err := a.engine.CueSets(ctx); err == nil {
		a.ui.PrintHeader("Gaze cue sets:")
		for _, s := range sets {
			a.ui.PrintInstruction(fmt.Sprintf("  %-8s %d cues every %s, %s",
				s.ID, len(s.Cues), s.Interval, plural(s.Rounds, "round")))
		}
	}

	if types, err := a.engine.MeetingTypes(ctx); err == nil {
		a.ui.PrintHeader("Meeting types:")
		a.ui.PrintInstruction("  " + strings.Join(types, ", "))
	}
}

func (a *cliApp) showLog(ctx context.Context) {
	entries, err := a.engine.History(ctx)
	if err != nil {
		a.ui.PrintUrgent(err.Error())
		return
	}
	if len(entries) == 0 {
		a.ui.PrintHint("journal is empty")
		return
	}

	a.ui.PrintHeader("Recent:")
	start := max(0, len(entries)-10)
	for _, e := range entries[start:] {
		a.ui.PrintInstruction("  " + formatEntry(e))
	}

	a.ui.PrintHeader("By module:")
	for _, st := range journal.Summarize(entries) {
		a.ui.PrintInstruction("  " + formatStat(st))
	}
}

func (a *cliApp) showTips(ctx context.Context, filter string) {
	sets, err := a.engine.Tips(ctx)
	if err != nil {
		a.ui.PrintUrgent(err.Error())
		return
	}
	filter = strings.ToLower(strings.TrimSpace(filter))
	shown := 0
	for _, s := range sets {
		if filter != "" && !strings.Contains(strings.ToLower(s.ID+" "+s.Name), filter) {
			continue
		}
		a.ui.PrintHeader(s.Name + ":")
		for _, t := range s.Tips {
			a.ui.PrintInstruction("  - " + t)
		}
		shown++
	}
	if shown == 0 {
		a.ui.PrintHint(fmt.Sprintf("no tips match %q", filter))
	}
}

// praCard walks through Purpose, Result, Ask and prints the card.
func (a *cliApp) praCard(ctx context.Context) {
	a.say(speech.LinePRA())

	var card domain.PRACard
	questions := []struct {
		prompt string
		dst    *string
	}{
		{"Purpose (one line):", &card.Purpose},
		{"Result you want:", &card.Result},
		{"Ask or risk:", &card.Ask},
	}
	for _, q := range questions {
		a.ui.PrintInstruction(q.prompt)
		answer, ok := a.next(ctx)
		if !ok {
			return
		}
		*q.dst = answer
	}

	a.ui.PrintInstruction("Decision today? (y/n)")
	answer, ok := a.next(ctx)
	if !ok {
		return
	}
	card.Decision = strings.HasPrefix(strings.ToLower(answer), "y")

	a.ui.Println("")
	for _, line := range strings.Split(card.String(), "\n") {
		a.ui.PrintChat(line)
	}
}

func (a *cliApp) quit(ctx context.Context) {
	if _, err := a.engine.Stop(ctx); err == nil {
		a.ui.PrintHint("stopped the running routine, not logged")
	}
	a.say(speech.LineBye())
	// Brief pause so TTS can start the goodbye line.
	time.Sleep(300 * time.Millisecond)
}

func (a *cliApp) showHelp() {
	a.ui.PrintHeader("Routines:")
	a.ui.PrintInstruction("  quick calm             Five physiological sighs")
	a.ui.PrintInstruction("  breathe [pattern] [n]  Paced breathing (box, 478, sigh...)")
	a.ui.PrintInstruction("  gaze [rounds] [secs]   Triangle gaze cues")
	a.ui.PrintInstruction("  warmup                 60s voice warmup")
	a.ui.PrintInstruction("  exposure [secs] [n]    Speak to prompts against the clock")
	a.ui.PrintInstruction("  practice [type] [s] [n] Read meeting lines out loud")
	a.ui.PrintInstruction("  glute                  Squeeze and hold, three times")
	a.ui.PrintInstruction("  prep [minutes]         Meeting prep timer")
	a.ui.PrintInstruction("  timer <90|2m> [label]  Plain countdown")
	a.ui.Println("")
	a.ui.PrintHeader("During a meeting:")
	a.ui.PrintInstruction("  next line [type]       Speak the next practice line")
	a.ui.PrintInstruction("  repeat                 Say that line again")
	a.ui.PrintInstruction("  pra                    Purpose, result, ask card")
	a.ui.Println("")
	a.ui.PrintHeader("Control:")
	a.ui.PrintInstruction("  stop                   End the routine without logging")
	a.ui.PrintInstruction("  pause / resume         Hold or continue the voice")
	a.ui.PrintInstruction("  quiet                  Cut off the current line")
	a.ui.PrintInstruction("  status                 What is running")
	a.ui.PrintInstruction("  list / log / tips      Library, journal, tips")
	a.ui.PrintInstruction("  quit                   Exit")
}

// introLine is printed as a routine starts. Narration is left to the
// routine's own cues.
func introLine(sess *domain.Session) string {
	switch sess.Module {
	case domain.ModuleQuickCalm:
		return speech.LineQuickCalm()
	case domain.ModulePrimerGlute:
		return speech.LineGlute()
	case domain.ModulePrimerTimer:
		return speech.LinePrep(int(sess.Planned.Minutes()))
	default:
		return ""
	}
}

// argInt returns args[i] as an int, or def when missing or not a number.
func argInt(args []string, i, def int) int {
	if i >= len(args) {
		return def
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return def
	}
	return n
}

// parseSeconds accepts "90", "90s", "2m" or "1m30s".
func parseSeconds(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("timer needs a duration: %w", domain.ErrInvalidDuration)
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("duration %q: %w", s, domain.ErrInvalidDuration)
	}
	return int(d.Round(time.Second).Seconds()), nil
}

func formatEntry(e domain.Entry) string {
	s := fmt.Sprintf("%s  %-26s %6s", e.Time.Format(domain.TimeLayout), e.Module, formatDuration(time.Duration(e.DurationSec)*time.Second))
	if e.Rating > 0 {
		s += fmt.Sprintf("  %s", strings.Repeat("*", e.Rating))
	}
	if e.Notes != "" {
		s += "  " + truncateStr(e.Notes, 40)
	}
	return s
}

func formatStat(st journal.ModuleStat) string {
	s := fmt.Sprintf("%-26s %3dx  %7s", st.Module, st.Count, formatDuration(time.Duration(st.TotalSec)*time.Second))
	if st.AvgRating > 0 {
		s += fmt.Sprintf("  avg %.1f", st.AvgRating)
	}
	return s
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
