package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Scheduler.Capacity != 7 {
		t.Errorf("Capacity = %d, want 7", cfg.Scheduler.Capacity)
	}
	if cfg.Scheduler.MaxFailures != 3 {
		t.Errorf("MaxFailures = %d, want 3", cfg.Scheduler.MaxFailures)
	}
	if cfg.Scheduler.FailureBackoff.Std() != time.Second {
		t.Errorf("FailureBackoff = %v, want 1s", cfg.Scheduler.FailureBackoff.Std())
	}
	if cfg.Executor.Mode != "mock" {
		t.Errorf("Mode = %q, want mock", cfg.Executor.Mode)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.SQLitePath != "wavefront.db" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Mock.ExecutionPassProbability != 0.95 {
		t.Errorf("ExecutionPassProbability = %v", cfg.Mock.ExecutionPassProbability)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  http_addr: ":9999"
scheduler:
  capacity: 3
  failure_backoff: 250ms
  compat_saturation_done: true
mock:
  execution_pass_probability: 0.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Scheduler.Capacity != 3 {
		t.Errorf("Capacity = %d, want 3", cfg.Scheduler.Capacity)
	}
	if cfg.Scheduler.FailureBackoff.Std() != 250*time.Millisecond {
		t.Errorf("FailureBackoff = %v", cfg.Scheduler.FailureBackoff.Std())
	}
	if !cfg.Scheduler.CompatSaturationDone {
		t.Error("CompatSaturationDone not set")
	}
	if cfg.Mock.ExecutionPassProbability != 0.5 {
		t.Errorf("ExecutionPassProbability = %v", cfg.Mock.ExecutionPassProbability)
	}
	// Untouched sections keep their defaults.
	if cfg.Scheduler.MaxFailures != 3 {
		t.Errorf("MaxFailures = %d, want default 3", cfg.Scheduler.MaxFailures)
	}
	if cfg.Server.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q, want default", cfg.Server.MetricsAddr)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeConfigFile(t, `
scheduler:
  capacity: 3
`)
	t.Setenv("WAVEFRONT_CAPACITY", "11")
	t.Setenv("WAVEFRONT_HTTP_ADDR", ":7070")
	t.Setenv("WAVEFRONT_MOCK_EXECUTION_PASS", "0.25")
	t.Setenv("WAVEFRONT_FAILURE_BACKOFF", "50ms")
	t.Setenv("WAVEFRONT_COMPAT_SATURATION_DONE", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Capacity != 11 {
		t.Errorf("Capacity = %d, want 11", cfg.Scheduler.Capacity)
	}
	if cfg.Server.HTTPAddr != ":7070" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Mock.ExecutionPassProbability != 0.25 {
		t.Errorf("ExecutionPassProbability = %v", cfg.Mock.ExecutionPassProbability)
	}
	if cfg.Scheduler.FailureBackoff.Std() != 50*time.Millisecond {
		t.Errorf("FailureBackoff = %v", cfg.Scheduler.FailureBackoff.Std())
	}
	if !cfg.Scheduler.CompatSaturationDone {
		t.Error("CompatSaturationDone not set")
	}
}

func TestLoadBadEnvValue(t *testing.T) {
	t.Setenv("WAVEFRONT_CAPACITY", "lots")
	if _, err := Load(""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDurationUnmarshalRejectsGarbage(t *testing.T) {
	path := writeConfigFile(t, `
scheduler:
  failure_backoff: soon
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "parse duration") {
		t.Fatalf("err = %v, want duration parse error", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero capacity", func(c *Config) { c.Scheduler.Capacity = 0 }, "capacity"},
		{"zero max failures", func(c *Config) { c.Scheduler.MaxFailures = 0 }, "max_failures"},
		{"zero slot retry limit", func(c *Config) { c.Scheduler.SlotRetryLimit = 0 }, "slot_retry_limit"},
		{"probability above one", func(c *Config) { c.Mock.ExecutionPassProbability = 1.5 }, "execution_pass_probability"},
		{"unknown executor mode", func(c *Config) { c.Executor.Mode = "quantum" }, "executor mode"},
		{"remote without addr", func(c *Config) { c.Executor.Mode = "remote" }, "remote_addr"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "tape" }, "storage backend"},
		{"sqlite without path", func(c *Config) { c.Storage.SQLitePath = "" }, "sqlite_path"},
		{"minio without credentials", func(c *Config) {
			c.Storage.Backend = "minio"
			c.ObjectStore.AccessKey = ""
		}, "object store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestValidateAcceptsRemoteWithAddr(t *testing.T) {
	cfg := Default()
	cfg.Executor.Mode = "remote"
	cfg.Executor.RemoteAddr = "localhost:50051"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
