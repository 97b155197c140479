package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/jsbridge/bridge"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Config{
		SourceName:  bridge.DefaultSourceName,
		LogLevel:    zapcore.InfoLevel,
		OTelEnabled: true,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Tracing() {
		t.Fatal("tracing enabled without an endpoint")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JSBRIDGE_SOURCE_NAME", "repl")
	t.Setenv("JSBRIDGE_COLLECT_INTERVAL", "250ms")
	t.Setenv("JSBRIDGE_MAX_TIMERS", "16")
	t.Setenv("JSBRIDGE_MAX_ARRAY_LENGTH", "1024")
	t.Setenv("JSBRIDGE_STRICT", "true")
	t.Setenv("JSBRIDGE_LOG_LEVEL", "debug")
	t.Setenv("JSBRIDGE_OTEL_ENDPOINT", "http://localhost:4318")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := bridge.Config{
		SourceName:      "repl",
		CollectInterval: 250 * time.Millisecond,
		MaxTimers:       16,
		MaxArrayLength:  1024,
		Strict:          true,
	}
	if diff := cmp.Diff(want, cfg.Bridge()); diff != "" {
		t.Fatalf("bridge config mismatch (-want +got):\n%s", diff)
	}
	if cfg.LogLevel != zapcore.DebugLevel {
		t.Fatalf("expected debug level, got %s", cfg.LogLevel)
	}
	if !cfg.Tracing() {
		t.Fatal("expected tracing with an endpoint set")
	}

	t.Setenv("JSBRIDGE_OTEL_ENABLED", "false")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tracing() {
		t.Fatal("tracing enabled although JSBRIDGE_OTEL_ENABLED=false")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad int", key: "JSBRIDGE_MAX_TIMERS", value: "many"},
		{name: "negative timers", key: "JSBRIDGE_MAX_TIMERS", value: "-1"},
		{name: "negative array length", key: "JSBRIDGE_MAX_ARRAY_LENGTH", value: "-1"},
		{name: "bad duration", key: "JSBRIDGE_COLLECT_INTERVAL", value: "soon"},
		{name: "negative interval", key: "JSBRIDGE_COLLECT_INTERVAL", value: "-1s"},
		{name: "bad level", key: "JSBRIDGE_LOG_LEVEL", value: "chatty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "parse env:") {
				t.Fatalf("expected parse env prefix, got %v", err)
			}
		})
	}
}
