package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration values for internal consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		return fmt.Errorf("paths.media_dir must not be empty")
	}
	if strings.TrimSpace(c.Engine.Binary) == "" {
		return fmt.Errorf("engine.binary must not be empty")
	}
	if c.Engine.Threads < 0 {
		return fmt.Errorf("engine.threads must not be negative")
	}
	if c.Workflow.QueuePollInterval <= 0 {
		return fmt.Errorf("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.LeaseStalenessSeconds <= 0 {
		return fmt.Errorf("workflow.lease_staleness_seconds must be positive")
	}
	if c.Workflow.LeaseHeartbeatSeconds <= 0 {
		return fmt.Errorf("workflow.lease_heartbeat_seconds must be positive")
	}
	if c.Workflow.LeaseHeartbeatSeconds >= c.Workflow.LeaseStalenessSeconds {
		return fmt.Errorf("workflow.lease_heartbeat_seconds must be below workflow.lease_staleness_seconds")
	}
	if c.Workflow.CancelWaitMS <= 0 {
		return fmt.Errorf("workflow.cancel_wait_ms must be positive")
	}
	if c.Workflow.StopWaitMS <= 0 {
		return fmt.Errorf("workflow.stop_wait_ms must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
