package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("hello from test")

	if !strings.Contains(buf.String(), "hello from test") {
		t.Errorf("expected output to contain message, got: %s", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithComponent(NewWithWriter(buf), "aggregate")

	log.Info().Msg("pass done")

	out := buf.String()
	if !strings.Contains(out, "aggregate") {
		t.Errorf("expected component field in output, got: %s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	ctx := WithContext(context.Background(), log)
	fromCtx := FromContext(ctx)
	fromCtx.Info().Msg("via context")

	if buf.Len() == 0 {
		t.Error("expected output from logger retrieved via context")
	}
}

func TestFromContextDefault(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("expected default logger to be enabled")
	}
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		value string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"garbage", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.value)
			if got := levelFromEnv(); got != tt.want {
				t.Errorf("levelFromEnv() with %q = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
