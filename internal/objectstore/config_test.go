package objectstore

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Endpoint:  "localhost:9000",
		AccessKey: "wavefront",
		SecretKey: "wavefrontminio",
		Region:    "us-east-1",
		Bucket:    "artifacts",
	}
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing endpoint", func(c *Config) { c.Endpoint = " " }, "endpoint"},
		{"missing access key", func(c *Config) { c.AccessKey = "" }, "access key"},
		{"missing secret key", func(c *Config) { c.SecretKey = "" }, "secret key"},
		{"missing bucket", func(c *Config) { c.Bucket = "" }, "bucket"},
		{"endpoint with scheme", func(c *Config) { c.Endpoint = "http://localhost:9000" }, "scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestArtifactKeyLayout(t *testing.T) {
	got := artifactKey("plan-1", "task-a")
	want := "plans/plan-1/tasks/task-a/output.json"
	if got != want {
		t.Errorf("key = %q, want %q", got, want)
	}
}
