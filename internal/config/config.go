// Package config loads daemon configuration from defaults, an optional YAML
// file, and WAVEFRONT_* environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/wavefront/internal/objectstore"
)

// Duration wraps time.Duration so YAML values parse as "500ms" strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SchedulerConfig tunes the run loop.
type SchedulerConfig struct {
	// Capacity is the number of worker slots.
	Capacity int `yaml:"capacity"`
	// MaxFailures is the total attempt budget per task before rollback.
	MaxFailures int `yaml:"max_failures"`
	// SlotRetryLimit bounds the slot acquisition loop.
	SlotRetryLimit  int      `yaml:"slot_retry_limit"`
	SlotBackoffBase Duration `yaml:"slot_backoff_base"`
	SlotBackoffStep Duration `yaml:"slot_backoff_step"`
	SlotBackoffMax  Duration `yaml:"slot_backoff_max"`
	// FailureBackoff is the pause after a failed attempt before retrying.
	FailureBackoff Duration `yaml:"failure_backoff"`
	// SlotFailedHold is how long a slot displays as failed before release.
	SlotFailedHold Duration `yaml:"slot_failed_hold"`
	// CompatSaturationDone restores the legacy behavior of marking a task
	// done when no slot frees up within the retry bound.
	CompatSaturationDone bool `yaml:"compat_saturation_done"`
}

// MockConfig tunes the simulated executor and validator.
type MockConfig struct {
	ExecutionPassProbability  float64  `yaml:"execution_pass_probability"`
	ValidationPassProbability float64  `yaml:"validation_pass_probability"`
	ExecutionLatency          Duration `yaml:"execution_latency"`
	ChunkDelay                Duration `yaml:"chunk_delay"`
}

// ExecutorConfig selects the execution backend.
type ExecutorConfig struct {
	// Mode is "mock" or "remote".
	Mode       string `yaml:"mode"`
	RemoteAddr string `yaml:"remote_addr"`
}

// StorageConfig selects the artifact backend.
type StorageConfig struct {
	// Backend is "sqlite" or "minio". Snapshots and plans always live in
	// SQLite; the backend choice covers artifacts only.
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ServerConfig holds the listen addresses.
type ServerConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Config is the complete daemon configuration.
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Scheduler   SchedulerConfig    `yaml:"scheduler"`
	Mock        MockConfig         `yaml:"mock"`
	Executor    ExecutorConfig     `yaml:"executor"`
	Storage     StorageConfig      `yaml:"storage"`
	ObjectStore objectstore.Config `yaml:"object_store"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddr:    ":8080",
			MetricsAddr: ":9090",
		},
		Scheduler: SchedulerConfig{
			Capacity:        7,
			MaxFailures:     3,
			SlotRetryLimit:  50,
			SlotBackoffBase: Duration(100 * time.Millisecond),
			SlotBackoffStep: Duration(20 * time.Millisecond),
			SlotBackoffMax:  Duration(500 * time.Millisecond),
			FailureBackoff:  Duration(time.Second),
			SlotFailedHold:  Duration(500 * time.Millisecond),
		},
		Mock: MockConfig{
			ExecutionPassProbability:  0.95,
			ValidationPassProbability: 0.95,
			ChunkDelay:                Duration(30 * time.Millisecond),
		},
		Executor: ExecutorConfig{
			Mode: "mock",
		},
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: "wavefront.db",
		},
		ObjectStore: objectstore.Config{
			Endpoint:  "localhost:9000",
			AccessKey: "wavefront",
			SecretKey: "wavefrontminio",
			Region:    "us-east-1",
			Bucket:    "artifacts",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.HTTPAddr = envString("WAVEFRONT_HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.MetricsAddr = envString("WAVEFRONT_METRICS_ADDR", c.Server.MetricsAddr)
	c.Executor.Mode = envString("WAVEFRONT_EXECUTOR_MODE", c.Executor.Mode)
	c.Executor.RemoteAddr = envString("WAVEFRONT_EXECUTOR_REMOTE_ADDR", c.Executor.RemoteAddr)
	c.Storage.Backend = envString("WAVEFRONT_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.SQLitePath = envString("WAVEFRONT_SQLITE_PATH", c.Storage.SQLitePath)

	var err error
	if c.Scheduler.Capacity, err = envInt("WAVEFRONT_CAPACITY", c.Scheduler.Capacity); err != nil {
		return err
	}
	if c.Scheduler.MaxFailures, err = envInt("WAVEFRONT_MAX_FAILURES", c.Scheduler.MaxFailures); err != nil {
		return err
	}
	if c.Scheduler.CompatSaturationDone, err = envBool("WAVEFRONT_COMPAT_SATURATION_DONE", c.Scheduler.CompatSaturationDone); err != nil {
		return err
	}
	if c.Mock.ExecutionPassProbability, err = envFloat("WAVEFRONT_MOCK_EXECUTION_PASS", c.Mock.ExecutionPassProbability); err != nil {
		return err
	}
	if c.Mock.ValidationPassProbability, err = envFloat("WAVEFRONT_MOCK_VALIDATION_PASS", c.Mock.ValidationPassProbability); err != nil {
		return err
	}
	if d, err := envDuration("WAVEFRONT_FAILURE_BACKOFF", c.Scheduler.FailureBackoff.Std()); err != nil {
		return err
	} else {
		c.Scheduler.FailureBackoff = Duration(d)
	}

	c.ObjectStore.Endpoint = envString("WAVEFRONT_MINIO_ENDPOINT", c.ObjectStore.Endpoint)
	c.ObjectStore.AccessKey = envString("WAVEFRONT_MINIO_ACCESS_KEY", c.ObjectStore.AccessKey)
	c.ObjectStore.SecretKey = envString("WAVEFRONT_MINIO_SECRET_KEY", c.ObjectStore.SecretKey)
	c.ObjectStore.Region = envString("WAVEFRONT_MINIO_REGION", c.ObjectStore.Region)
	c.ObjectStore.Bucket = envString("WAVEFRONT_MINIO_BUCKET", c.ObjectStore.Bucket)
	if c.ObjectStore.UseSSL, err = envBool("WAVEFRONT_MINIO_USE_SSL", c.ObjectStore.UseSSL); err != nil {
		return err
	}
	return nil
}

// Validate checks invariants the rest of the daemon relies on.
func (c *Config) Validate() error {
	if c.Scheduler.Capacity < 1 {
		return errors.New("scheduler capacity must be at least 1")
	}
	if c.Scheduler.MaxFailures < 1 {
		return errors.New("scheduler max_failures must be at least 1")
	}
	if c.Scheduler.SlotRetryLimit < 1 {
		return errors.New("scheduler slot_retry_limit must be at least 1")
	}
	if p := c.Mock.ExecutionPassProbability; p < 0 || p > 1 {
		return fmt.Errorf("mock execution_pass_probability out of range: %v", p)
	}
	if p := c.Mock.ValidationPassProbability; p < 0 || p > 1 {
		return fmt.Errorf("mock validation_pass_probability out of range: %v", p)
	}
	switch c.Executor.Mode {
	case "mock":
	case "remote":
		if c.Executor.RemoteAddr == "" {
			return errors.New("executor remote_addr is required in remote mode")
		}
	default:
		return fmt.Errorf("unknown executor mode: %q", c.Executor.Mode)
	}
	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("storage sqlite_path is required")
		}
	case "minio":
		if err := c.ObjectStore.Validate(); err != nil {
			return fmt.Errorf("object store: %w", err)
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}
	return nil
}
