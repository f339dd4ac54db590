package logx

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func bufLogger(buf *bytes.Buffer, lvl zerolog.Level) Logger {
	return Logger{base: zerolog.New(buf).Level(lvl), hasBase: true}
}

func TestFieldsApplied(t *testing.T) {
	var buf bytes.Buffer
	l := bufLogger(&buf, zerolog.InfoLevel).With(String("comp", "engine"))
	l.Info("campaign started",
		Int("contacts", 3),
		Duration("took", 2*time.Second),
		Err(errors.New("partial")),
	)

	out := buf.String()
	for _, want := range []string{
		`"comp":"engine"`,
		`"contacts":3`,
		`"message":"campaign started"`,
		"partial",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := bufLogger(&buf, zerolog.ErrorLevel)
	l.Debug("quiet")
	l.Info("quiet")
	l.Warn("quiet")
	if buf.Len() != 0 {
		t.Fatalf("below-threshold levels were written: %s", buf.String())
	}
	l.Error("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Fatalf("error level not written: %s", buf.String())
	}
}

func TestEnabled(t *testing.T) {
	var buf bytes.Buffer
	l := bufLogger(&buf, zerolog.WarnLevel)
	if l.Enabled(LevelDebug) {
		t.Error("debug must be disabled at warn level")
	}
	if !l.Enabled(LevelError) {
		t.Error("error must be enabled at warn level")
	}
}

func TestZeroAndNopAreSafe(t *testing.T) {
	var zero Logger
	if !zero.IsZero() {
		t.Error("zero value must report IsZero")
	}
	zero.Info("dropped", String("k", "v"))
	Nop().Error("dropped", Err(errors.New("x")))
}

func TestNewConsole(t *testing.T) {
	l := NewConsole("debug")
	if l.IsZero() {
		t.Fatal("console logger is zero")
	}
	if !l.Enabled(LevelDebug) {
		t.Error("requested level not applied")
	}
	if NewConsole("not-a-level").Enabled(LevelDebug) {
		t.Error("unknown level must fall back to info")
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{" DEBUG ", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in, zerolog.InfoLevel); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
