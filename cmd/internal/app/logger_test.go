package app

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"":         zapcore.InfoLevel,
		"debug":    zapcore.DebugLevel,
		" DEBUG ":  zapcore.DebugLevel,
		"warning":  zapcore.WarnLevel,
		"error":    zapcore.ErrorLevel,
		"verbose":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", in, got, want)
		}
	}
}

func TestNewLogger_Formats(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"json", "console"} {
		log, err := NewLogger("debug", format)
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", format, err)
		}
		if !log.Core().Enabled(zapcore.DebugLevel) {
			t.Fatalf("format=%q: debug level should be enabled", format)
		}
	}
}
