package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Config{Level: "debug", Output: buf})
	defer Init(Config{})

	Debug().Str("component", "test").Msg("hello")
	if !strings.Contains(buf.String(), `"component":"test"`) {
		t.Fatalf("expected structured field in output, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"message":"hello"`) {
		t.Fatalf("expected message in output, got %s", buf.String())
	}
}

func TestInitLevelFilters(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Config{Level: "error", Output: buf})
	defer Init(Config{})

	Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %s", buf.String())
	}
	Error().Msg("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("expected error to be written")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q)=%v, want %v", input, got, want)
		}
	}
}
