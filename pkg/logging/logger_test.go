package logging

import (
	"testing"
)

func TestNewZapLogger_Levels(t *testing.T) {
	for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL", "bogus"} {
		logger, err := NewZapLogger(level)
		if err != nil {
			t.Fatalf("logger creation failed for level %s: %v", level, err)
		}
		if logger == nil {
			t.Fatalf("nil logger for level %s", level)
		}
	}
}

func TestZapLogger_Fields(t *testing.T) {
	logger, err := NewZapLogger("INFO")
	if err != nil {
		t.Fatalf("logger creation failed: %v", err)
	}

	scoped := logger.WithField("component", "test").WithFields(map[string]interface{}{
		"pair": "ETHBTC",
	})
	scoped.Info("field scoping works", "key", "value")
	scoped.Warn("odd field counts are tolerated", "dangling")

	_ = logger.Sync() // stdout sync may fail in some envs, ignore error
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("warn"); err != nil || lvl != WarnLevel {
		t.Fatalf("expected WarnLevel, got %v (%v)", lvl, err)
	}
	if _, err := ParseLevel("nonsense"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
