package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		level     Level
		wantDebug bool
		wantInfo  bool
	}{
		{LevelOff, false, false},
		{LevelNormal, false, true},
		{LevelVerbose, true, true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		log := New(tt.level, &buf)
		log.Debug("debug %d", 1)
		log.Info("info %d", 2)

		out := buf.String()
		if got := strings.Contains(out, "debug 1"); got != tt.wantDebug {
			t.Errorf("level %d: debug visible = %v, want %v", tt.level, got, tt.wantDebug)
		}
		if got := strings.Contains(out, "info 2"); got != tt.wantInfo {
			t.Errorf("level %d: info visible = %v, want %v", tt.level, got, tt.wantInfo)
		}
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelOff, &buf)
	log.Warn("hidden")
	log.SetLevel(LevelNormal)
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("message logged while level was off")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected message after SetLevel")
	}
	if log.GetLevel() != LevelNormal {
		t.Errorf("GetLevel = %d, want %d", log.GetLevel(), LevelNormal)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelNormal, &buf).Component("sequencer")
	log.Info("tick")

	if !strings.Contains(buf.String(), "component=sequencer") {
		t.Errorf("expected component field, got %q", buf.String())
	}
}

// countingArg counts how often it is formatted.
type countingArg struct{ n *int }

func (c countingArg) String() string {
	*c.n++
	return "arg"
}

func TestSuppressedLevelSkipsFormatting(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelNormal, &buf)

	formatted := 0
	log.Debug("value %s", countingArg{&formatted})
	if formatted != 0 {
		t.Fatalf("debug args formatted %d times at normal level", formatted)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected debug output %q", buf.String())
	}

	log.Info("value %s", countingArg{&formatted})
	if formatted != 1 {
		t.Fatalf("info args formatted %d times, want 1", formatted)
	}
	if !strings.Contains(buf.String(), "value arg") {
		t.Errorf("expected formatted message, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("verbose") != LevelVerbose {
		t.Error("verbose should map to LevelVerbose")
	}
	if ParseLevel("off") != LevelOff {
		t.Error("off should map to LevelOff")
	}
	if ParseLevel("whatever") != LevelNormal {
		t.Error("unknown should map to LevelNormal")
	}
}
