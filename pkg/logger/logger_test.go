package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_AttachesServiceFields(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var buf bytes.Buffer
	Init(Options{Level: "debug", Service: "assistant-api", Env: "test", Output: &buf})
	l := Component("auth")
	l.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	for k, want := range map[string]string{"service": "assistant-api", "env": "test", "component": "auth", "message": "hello"} {
		if entry[k] != want {
			t.Errorf("%s: expected %q, got %v", k, want, entry[k])
		}
	}
}

func TestInit_OnlyFirstCallApplies(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var first, second bytes.Buffer
	Init(Options{Output: &first})
	Init(Options{Output: &second})
	l := Get()
	l.Info().Msg("x")

	if first.Len() == 0 || second.Len() != 0 {
		t.Errorf("expected output on the first writer only")
	}
}

func TestGet_BeforeInitIsNop(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var buf bytes.Buffer
	l := Get()
	l.Info().Msg("dropped")
	Init(Options{Output: &buf})
	if buf.Len() != 0 {
		t.Errorf("expected nothing written before Init, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
