package speech

import (
	"context"
	"testing"
	"time"

	"github.com/hammamikhairi/calmcoach/internal/logger"
)

func newTestEar(clips ...string) *Ear {
	e := &Ear{
		log:       logger.New(logger.LevelOff, nil),
		wakeWords: defaultWakeWords,
		textCh:    make(chan string, 4),
	}
	e.record = func(context.Context, time.Duration) string {
		if len(clips) == 0 {
			return ""
		}
		c := clips[0]
		clips = clips[1:]
		return c
	}
	return e
}

func TestStripWakeWord(t *testing.T) {
	e := newTestEar()
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Hey coach, stop.", "stop", true},
		{"hey coach breathe box 4", "breathe box 4", true},
		{"Calm coach", "", true},
		{"so um coach next line", "next line", true},
		{"stop the music", "", false},
	}
	for _, tt := range tests {
		got, ok := e.stripWakeWord(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("stripWakeWord(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCleanTranscription(t *testing.T) {
	tests := []struct{ in, want string }{
		{"[BLANK_AUDIO]", ""},
		{" Thank you. ", ""},
		{"hey coach (keyboard clicking) stop", "hey coach stop"},
		{"line one\nline two", "line one line two"},
	}
	for _, tt := range tests {
		if got := cleanTranscription(tt.in); got != tt.want {
			t.Errorf("cleanTranscription(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEarForwardsCommand(t *testing.T) {
	e := newTestEar("hey coach quick calm")
	e.listenOnce(context.Background())

	select {
	case got := <-e.C():
		if got != "quick calm" {
			t.Errorf("command = %q", got)
		}
	default:
		t.Fatal("expected a command")
	}
}

func TestEarFollowUpAfterBareWakeWord(t *testing.T) {
	e := newTestEar("hey coach", "stop")
	e.listenOnce(context.Background())

	select {
	case got := <-e.C():
		if got != "stop" {
			t.Errorf("command = %q", got)
		}
	default:
		t.Fatal("expected follow-up command")
	}
}

func TestEarIgnoresChatter(t *testing.T) {
	e := newTestEar("what a day")
	e.listenOnce(context.Background())

	select {
	case got := <-e.C():
		t.Fatalf("unexpected command %q", got)
	default:
	}
}
