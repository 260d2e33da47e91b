package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		key   string
		value any
	}{
		{"String", String("server", "survival"), "server", "survival"},
		{"Int", Int("players", 3), "players", 3},
		{"Duration", Duration("uptime", time.Minute), "uptime", time.Minute},
		{"Err nil", Err(nil), "error", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.Key != tt.key {
				t.Errorf("Key = %q, want %q", tt.field.Key, tt.key)
			}
			if tt.field.Value != tt.value {
				t.Errorf("Value = %v, want %v", tt.field.Value, tt.value)
			}
		})
	}

	t.Run("Err keeps the error", func(t *testing.T) {
		cause := errors.New("eula not accepted")
		if f := Err(cause); f.Value != cause {
			t.Errorf("Err().Value = %v, want %v", f.Value, cause)
		}
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "manager")

	logger.Info("server loaded", String("server", "lobby"))
	output := buf.String()

	for _, want := range []string{"manager", "server loaded", "lobby", "info"} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q, got: %s", want, output)
		}
	}
}

func TestZerologAdapter_Levels(t *testing.T) {
	tests := []struct {
		name     string
		log      func(Logger)
		contains []string
	}{
		{
			name:     "warn",
			log:      func(l Logger) { l.Warn("possible crash", String("line", "java.lang.OutOfMemoryError")) },
			contains: []string{"warn", "possible crash", "OutOfMemoryError"},
		},
		{
			name:     "error with cause",
			log:      func(l Logger) { l.Error("download failed", errors.New("status 404"), Int("attempt", 1)) },
			contains: []string{"error", "download failed", "status 404", "attempt"},
		},
		{
			name:     "error with nil cause",
			log:      func(l Logger) { l.Error("stop", nil) },
			contains: []string{"error", "stop"},
		},
		{
			name:     "debug",
			log:      func(l Logger) { l.Debug("spawn", String("cmd", "java")) },
			contains: []string{"debug", "spawn", "java"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewZerologAdapter(zerolog.New(&buf).Level(zerolog.DebugLevel)))
			output := buf.String()
			for _, want := range tt.contains {
				if !strings.Contains(output, want) {
					t.Errorf("output should contain %q, got: %s", want, output)
				}
			}
		})
	}
}

func TestZerologAdapter_applyFields(t *testing.T) {
	tests := []struct {
		name     string
		field    Field
		contains string
	}{
		{"string field", Field{Key: "str", Value: "hello"}, "hello"},
		{"int field", Field{Key: "num", Value: 42}, "42"},
		{"int64 field", Field{Key: "big", Value: int64(9223372036854775807)}, "9223372036854775807"},
		{"duration field", Duration("uptime", 90*time.Second), "90000"},
		{"float64 field", Field{Key: "cpu", Value: 12.5}, "12.5"},
		{"error field", Field{Key: "err", Value: errors.New("oops")}, "oops"},
		{"bool field", Field{Key: "flag", Value: true}, "true"},
		{"interface field", Field{Key: "data", Value: struct{ X int }{X: 1}}, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewLogger(&buf, "test").Info("test", tt.field)
			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("applyFields should handle %s, output: %s", tt.name, buf.String())
			}
		})
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base := NewZerologAdapter(zerolog.New(&buf))
	Component(base, "provider").Info("fetching manifest")

	if !strings.Contains(buf.String(), `"component":"provider"`) {
		t.Errorf("Component should tag entries, got: %s", buf.String())
	}

	var other Logger = plainLogger{}
	if Component(other, "x") != other {
		t.Error("Component should return non-zerolog loggers unchanged")
	}
}

func TestNewConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleLogger(&buf, true).Info("ready", String("server", "lobby"))
	output := buf.String()
	if !strings.Contains(output, "ready") || !strings.Contains(output, "server=lobby") {
		t.Errorf("console output unexpected: %s", output)
	}
	if strings.Contains(output, "\x1b[") {
		t.Errorf("noColor console output should not contain escape codes: %q", output)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("ignored")
	l.Error("ignored", errors.New("x"))
}

func TestLoggerInterface(t *testing.T) {
	var buf bytes.Buffer
	var _ Logger = NewLogger(&buf, "test")
	var _ Logger = NewConsoleLogger(&buf, true)
}

type plainLogger struct{}

func (plainLogger) Info(string, ...Field)         {}
func (plainLogger) Warn(string, ...Field)         {}
func (plainLogger) Error(string, error, ...Field) {}
func (plainLogger) Debug(string, ...Field)        {}
