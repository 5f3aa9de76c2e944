package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		DebugLevel: zapcore.DebugLevel,
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		"":         zapcore.InfoLevel,
		"verbose":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Errorf("toZapLevel(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestGet_ReturnsSingleton(t *testing.T) {
	a := Get(DebugLevel)
	b := GetWithFormat(ErrorLevel, JSONFormat)
	if a != b {
		t.Fatal("Get returned different instances")
	}
	if a.SugaredLogger == nil {
		t.Fatal("nil sugared logger")
	}
}

func encode(t *testing.T, format string) string {
	t.Helper()
	var buf bytes.Buffer
	core := zapcore.NewCore(newEncoder(format), zapcore.AddSync(&buf), zapcore.InfoLevel)
	l := &Logger{SugaredLogger: zap.New(core).Named("farm").Sugar()}
	l.Component("schedule").Infow("rule_fired", "rule_id", "r1")
	return buf.String()
}

func TestNewEncoder_JSON(t *testing.T) {
	var entry map[string]any
	if err := json.Unmarshal([]byte(encode(t, JSONFormat)), &entry); err != nil {
		t.Fatalf("json line: %v", err)
	}
	if entry["logger"] != "farm.schedule" || entry["rule_id"] != "r1" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewEncoder_Console(t *testing.T) {
	line := encode(t, ConsoleFormat)
	for _, want := range []string{"INFO", "farm.schedule", "rule_fired"} {
		if !strings.Contains(line, want) {
			t.Errorf("console line %q missing %q", line, want)
		}
	}
}

func TestComponent_NilSafe(t *testing.T) {
	var l *Logger
	l.Component("x").Infow("ignored")
}
