package testsupport

import (
	"path/filepath"
	"testing"

	"scribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Timings are tightened so pause, cancel, and stop paths settle quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.CancelWaitMS = 500
	cfgVal.Workflow.StopWaitMS = 250

	builder := &configBuilder{t: t, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithCancelWait overrides the per-job cancel wait in milliseconds.
func WithCancelWait(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.CancelWaitMS = ms
	}
}

// WithLeaseStaleness overrides the lease staleness window in seconds.
func WithLeaseStaleness(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.LeaseStalenessSeconds = seconds
	}
}

// WithEngineBinary points the engine config at a specific executable.
func WithEngineBinary(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.Binary = path
	}
}
