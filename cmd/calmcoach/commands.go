package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/calmcoach/internal/config"
	"github.com/hammamikhairi/calmcoach/internal/conversation"
	"github.com/hammamikhairi/calmcoach/internal/display"
	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/journal"
)

// ── run ──────────────────────────────────────────────────────────

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <routine> [args...]",
		Short: "Run one routine in line mode and exit when it finishes",
		Example: `  calmcoach run quick calm
  calmcoach run breathe 478 4
  calmcoach run gaze 6
  calmcoach run timer 2m tea break`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
}

// doneNotifier prints completion messages and signals the waiting command.
type doneNotifier struct {
	domain.Notifier
	done chan struct{}
}

func (n *doneNotifier) Notify(ctx context.Context, message string) error {
	err := n.Notifier.Notify(ctx, message)
	select {
	case n.done <- struct{}{}:
	default:
	}
	return err
}

func runOnce(ctx context.Context, command string, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.Close()

	parser := conversation.NewKeywordParser(d.log.Component("parser"))
	intent, err := parser.Parse(ctx, command, nil)
	if err != nil {
		return err
	}

	notifier := &doneNotifier{
		Notifier: conversation.NewCLINotifier(d.log.Component("notify"), func(format string, a ...interface{}) {
			fmt.Fprintf(out, format+"\n", a...)
		}),
		done: make(chan struct{}, 1),
	}
	eng := d.newEngine(display.NewConsole(out), notifier)
	defer eng.Close()

	sess, err := startRoutine(ctx, eng, d.cfg.Coach, intent)
	if errors.Is(err, errNotRoutine) {
		return fmt.Errorf("%q is not a routine, try: calmcoach run --help", command)
	}
	if err != nil {
		return err
	}
	heading(fmt.Sprintf("%s: %s", sess.Module, sess.Notes))
	printDim("about %s, Ctrl+C to stop without logging", formatDuration(sess.Planned))

	select {
	case <-notifier.done:
		d.waitForVoice(5 * time.Second)
		return nil
	case <-ctx.Done():
		if _, err := eng.Stop(context.Background()); err == nil {
			fmt.Fprintln(out)
			printDim("stopped, not logged")
		}
		return nil
	}
}

// waitForVoice lets the closing line finish before the process exits.
func (d *deps) waitForVoice(limit time.Duration) {
	if d.mouth == nil {
		return
	}
	deadline := time.Now().Add(limit)
	time.Sleep(200 * time.Millisecond)
	for d.mouth.IsSpeaking() && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
}

// ── log ──────────────────────────────────────────────────────────

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Read and write the practice journal",
	}
	cmd.AddCommand(newLogListCmd(), newLogAddCmd(), newLogExportCmd(), newLogStatsCmd())
	return cmd
}

func newLogListCmd() *cobra.Command {
	var (
		limit  int
		module string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer d.Close()

			entries, err := d.journal.List(cmd.Context())
			if err != nil {
				return err
			}
			if module != "" {
				entries = filterModule(entries, module)
			}
			if len(entries) == 0 {
				printDim("no entries")
				return nil
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			for _, e := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), formatEntry(e))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most n entries (0 for all)")
	cmd.Flags().StringVarP(&module, "module", "m", "", "only entries whose module contains this text")
	return cmd
}

func newLogAddCmd() *cobra.Command {
	var (
		notes  string
		rating int
		when   string
	)
	cmd := &cobra.Command{
		Use:   "add <module> <seconds>",
		Short: "Record a session done away from the app",
		Long: "Record a session done away from the app. Module is one of:\n  " +
			strings.Join(domain.Modules, "\n  "),
		Example: `  calmcoach log add "Voice Warmup" 90 --rating 4
  calmcoach log add other 300 --notes "walk before standup"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := matchModule(args[0])
			if err != nil {
				return err
			}
			secs, err := parseSeconds(args[1])
			if err != nil {
				return err
			}

			entry := domain.Entry{Module: module, DurationSec: secs, Notes: notes, Rating: rating}
			if when != "" {
				t, err := time.ParseInLocation(domain.TimeLayout, when, time.Local)
				if err != nil {
					return fmt.Errorf("--time must look like %q: %w", domain.TimeLayout, domain.ErrValidation)
				}
				entry.Time = t
			}

			d, err := buildDeps(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer d.Close()

			eng := d.newEngine(nil, nil)
			if err := eng.Record(cmd.Context(), entry); err != nil {
				return err
			}
			printOK("logged %s, %s", module, formatDuration(time.Duration(secs)*time.Second))
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().IntVarP(&rating, "rating", "r", 0, fmt.Sprintf("self rating %d-%d", domain.MinRating, domain.MaxRating))
	cmd.Flags().StringVar(&when, "time", "", "when it happened (default now)")
	return cmd
}

func newLogExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the journal as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer d.Close()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := journal.Export(cmd.Context(), d.journal, w); err != nil {
				return err
			}
			if out != "" && out != "-" {
				printOK("exported to %s", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newLogStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the journal by module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer d.Close()

			entries, err := d.journal.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				printDim("no entries")
				return nil
			}
			for _, st := range journal.Summarize(entries) {
				fmt.Fprintln(cmd.OutOrStdout(), formatStat(st))
			}
			return nil
		},
	}
}

// matchModule resolves a case-insensitive module name or unique prefix.
func matchModule(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var matches []string
	for _, m := range domain.Modules {
		lower := strings.ToLower(m)
		if lower == name {
			return m, nil
		}
		if strings.HasPrefix(lower, name) {
			matches = append(matches, m)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return "", fmt.Errorf("module %q: choose one of %s: %w", name, strings.Join(domain.Modules, ", "), domain.ErrValidation)
}

func filterModule(entries []domain.Entry, text string) []domain.Entry {
	text = strings.ToLower(text)
	var out []domain.Entry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Module), text) {
			out = append(out, e)
		}
	}
	return out
}

// ── routines ─────────────────────────────────────────────────────

func newRoutinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routines",
		Short: "List breathing patterns, gaze cue sets and meeting types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := buildDeps(ctx, false)
			if err != nil {
				return err
			}
			defer d.Close()
			out := cmd.OutOrStdout()

			patterns, err := d.routines.Patterns(ctx)
			if err != nil {
				return err
			}
			heading("Breathing patterns")
			for _, p := range patterns {
				fmt.Fprintf(out, "  %-8s %-28s %3ds/cycle  %s\n", p.ID, p.Name, p.CycleSeconds, p.Description)
			}

			sets, err := d.routines.CueSets(ctx)
			if err != nil {
				return err
			}
			heading("Gaze cue sets")
			for _, s := range sets {
				fmt.Fprintf(out, "  %-8s %-28s %s every %s, %s\n",
					s.ID, s.Name, plural(len(s.Cues), "cue"), s.Interval, plural(s.Rounds, "round"))
			}

			types, err := d.routines.MeetingTypes(ctx)
			if err != nil {
				return err
			}
			heading("Meeting types")
			fmt.Fprintf(out, "  %s\n", strings.Join(types, ", "))

			printDim("\nroutine files: %s", strings.Join(d.routines.Dirs(), ", "))
			return nil
		},
	}
}

// ── config ───────────────────────────────────────────────────────

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigSetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			values := cfg.Values()
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %v\n", k, values[k])
			}
			printDim("\nuser file: %s", config.UserConfigPath())
			if p := config.ProjectConfigPath(); p != "" {
				printDim("project file: %s", p)
			}
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var project bool
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long:  "Change one setting. Keys:\n  " + strings.Join(config.Keys(), "\n  "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.UserConfigPath()
			if flagConfig != "" {
				path = flagConfig
			}
			if project {
				path = ".calmcoach.yaml"
			}
			if _, err := config.Set(path, args[0], args[1]); err != nil {
				return err
			}
			printOK("%s = %s (%s)", args[0], args[1], path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&project, "project", false, "write to .calmcoach.yaml in the current directory")
	return cmd
}
