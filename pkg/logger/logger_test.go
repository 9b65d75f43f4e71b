package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel zerolog.Level
	}{
		{"debug json", "debug", "json", zerolog.DebugLevel},
		{"info json", "info", "json", zerolog.InfoLevel},
		{"warn console", "warn", "console", zerolog.WarnLevel},
		{"error json", "error", "json", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.level, tt.format, "test")
			if log == nil {
				t.Fatal("Expected logger to be created")
			}
			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("Expected global level %v, got %v", tt.wantLevel, zerolog.GlobalLevel())
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"WARN", zerolog.WarnLevel},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()

	// None of these may panic or write anywhere.
	log.Debug("debug")
	log.Infof("info %d", 1)
	log.WithField("k", "v").WithComponent("test").WithError(nil).Warn("warn")
}

func TestWithFieldReturnsNewLogger(t *testing.T) {
	base := Nop()
	derived := base.WithField("key", "value")

	if derived == base {
		t.Error("Expected WithField to return a new logger")
	}
}
