// Calm Coach: guided breathing, gaze, voice warmup and meeting primers
// with a spoken coach.
//
// Usage:
//
//	calmcoach [--verbose] [--quiet] [--no-speech] [--listen]
//	calmcoach run breathe box 4
//	calmcoach log list|add|export
//	calmcoach routines
//	calmcoach config show|set <key> <value>
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	flagVerbose  bool
	flagQuiet    bool
	flagConfig   string
	flagNoSpeech bool
	flagListen   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printErr("error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "calmcoach",
		Short:         "A calm voice coach for breathing, warmups and meeting prep",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&flagVerbose, "verbose", false, "enable verbose/debug logging")
	pf.BoolVar(&flagQuiet, "quiet", false, "disable all logging")
	pf.StringVar(&flagConfig, "config", "", "config file (default: user and project config)")
	pf.BoolVar(&flagNoSpeech, "no-speech", false, "disable text-to-speech even if Azure keys are set")
	root.Flags().BoolVar(&flagListen, "listen", false, "enable voice commands via local Whisper STT")

	root.AddCommand(newRunCmd(), newLogCmd(), newRoutinesCmd(), newConfigCmd())
	return root
}

func printErr(format string, a ...any) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", a...)
}

func printOK(format string, a ...any) {
	color.New(color.FgGreen).Printf(format+"\n", a...)
}

func printDim(format string, a ...any) {
	color.New(color.Faint).Printf(format+"\n", a...)
}

func heading(text string) {
	color.New(color.FgCyan, color.Bold).Println(text)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
