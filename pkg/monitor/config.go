package monitor

import (
	"time"

	"go.uber.org/zap"

	"github.com/ja7ad/procwatch/pkg/metrics"
)

// Config tunes a Sampler. Zero or negative fields fall back to defaults.
type Config struct {
	// EventBuffer bounds undrained events; the oldest are dropped on overflow.
	EventBuffer int
	// IOErrorLogEvery throttles repeated "proc unreadable" log lines. Every
	// failure still produces an error event.
	IOErrorLogEvery time.Duration

	Logger  *zap.Logger      // nil: no logging
	Metrics *metrics.Metrics // nil: not instrumented
	Clock   func() time.Time // nil: time.Now
}

const (
	DefaultEventBuffer     = 4096
	DefaultIOErrorLogEvery = 30 * time.Second
)

func _defaultConfig() *Config {
	return &Config{
		EventBuffer:     DefaultEventBuffer,
		IOErrorLogEvery: DefaultIOErrorLogEvery,
		Logger:          zap.NewNop(),
		Clock:           time.Now,
	}
}

func mergeConfig(cfg *Config) *Config {
	base := _defaultConfig()
	if cfg == nil {
		return base
	}

	merged := *base
	if cfg.EventBuffer > 0 {
		merged.EventBuffer = cfg.EventBuffer
	}
	if cfg.IOErrorLogEvery > 0 {
		merged.IOErrorLogEvery = cfg.IOErrorLogEvery
	}
	if cfg.Logger != nil {
		merged.Logger = cfg.Logger
	}
	if cfg.Clock != nil {
		merged.Clock = cfg.Clock
	}
	merged.Metrics = cfg.Metrics
	return &merged
}
