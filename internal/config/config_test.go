package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, resolved, err := config.Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Engine.Binary != "whisper-cli" {
		t.Fatalf("unexpected engine binary: %q", cfg.Engine.Binary)
	}
	if cfg.Workflow.LeaseStalenessSeconds != 30 {
		t.Fatalf("unexpected lease staleness: %d", cfg.Workflow.LeaseStalenessSeconds)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"

[engine]
model = "/models/ggml-base.bin"
threads = 8

[workflow]
lease_staleness_seconds = 45
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.Model != "/models/ggml-base.bin" {
		t.Fatalf("unexpected model: %q", cfg.Engine.Model)
	}
	if cfg.Engine.Threads != 8 {
		t.Fatalf("unexpected threads: %d", cfg.Engine.Threads)
	}
	if cfg.Workflow.LeaseStalenessSeconds != 45 {
		t.Fatalf("unexpected staleness: %d", cfg.Workflow.LeaseStalenessSeconds)
	}
	if cfg.Paths.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty engine binary", func(c *config.Config) { c.Engine.Binary = "" }},
		{"zero poll interval", func(c *config.Config) { c.Workflow.QueuePollInterval = 0 }},
		{"heartbeat above staleness", func(c *config.Config) { c.Workflow.LeaseHeartbeatSeconds = 60 }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSampleMentionsAllSections(t *testing.T) {
	sample := config.Sample()
	for _, section := range []string{"[paths]", "[engine]", "[workflow]", "[logging]"} {
		if !strings.Contains(sample, section) {
			t.Fatalf("sample config missing %s", section)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected overwrite refusal")
	}
}
