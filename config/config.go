package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/jsbridge/bridge"
)

// Config is the environment-level configuration of a jsbridge process.
type Config struct {
	// SourceName labels evaluated source in guest stack traces.
	SourceName string `env:"JSBRIDGE_SOURCE_NAME" envDefault:"noname"`

	// CollectInterval enables periodic collection when positive.
	CollectInterval time.Duration `env:"JSBRIDGE_COLLECT_INTERVAL" envDefault:"0s"`

	// MaxTimers caps pending timers; zero means unlimited.
	MaxTimers int `env:"JSBRIDGE_MAX_TIMERS" envDefault:"0"`

	// MaxArrayLength caps guest arrays copied to Go; zero keeps the bridge
	// default.
	MaxArrayLength int `env:"JSBRIDGE_MAX_ARRAY_LENGTH" envDefault:"0"`

	Strict bool `env:"JSBRIDGE_STRICT" envDefault:"false"`

	LogLevel zapcore.Level `env:"JSBRIDGE_LOG_LEVEL" envDefault:"info"`

	// OTelEndpoint is the OTLP/HTTP collector URL. Tracing stays off while
	// it is empty.
	OTelEndpoint string `env:"JSBRIDGE_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"JSBRIDGE_OTEL_ENABLED" envDefault:"true"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MaxTimers < 0 {
		return Config{}, fmt.Errorf("parse env: JSBRIDGE_MAX_TIMERS must not be negative, got %d", cfg.MaxTimers)
	}
	if cfg.MaxArrayLength < 0 {
		return Config{}, fmt.Errorf("parse env: JSBRIDGE_MAX_ARRAY_LENGTH must not be negative, got %d", cfg.MaxArrayLength)
	}
	if cfg.CollectInterval < 0 {
		return Config{}, fmt.Errorf("parse env: JSBRIDGE_COLLECT_INTERVAL must not be negative, got %s", cfg.CollectInterval)
	}
	return cfg, nil
}

// Bridge returns the bridge settings carried by c.
func (c Config) Bridge() bridge.Config {
	return bridge.Config{
		SourceName:      c.SourceName,
		CollectInterval: c.CollectInterval,
		MaxTimers:       c.MaxTimers,
		MaxArrayLength:  c.MaxArrayLength,
		Strict:          c.Strict,
	}
}

// Tracing reports whether spans should be exported.
func (c Config) Tracing() bool {
	return c.OTelEnabled && c.OTelEndpoint != ""
}
