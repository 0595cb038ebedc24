package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Addr:             "127.0.0.1:8080",
		LogDir:           "logs",
		ProbeTimeout:     3 * time.Second,
		ProbeConcurrency: 50,
		RetentionDays:    31,
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr == "" || cfg.LogDir == "" {
		t.Fatalf("defaults missing: %+v", cfg)
	}
	if cfg.ProbeTimeout != 3*time.Second {
		t.Fatalf("expected 3s probe timeout default, got %v", cfg.ProbeTimeout)
	}
	if cfg.ProbeConcurrency != 50 {
		t.Fatalf("expected concurrency 50 default, got %d", cfg.ProbeConcurrency)
	}
	if cfg.RetentionDays != 31 {
		t.Fatalf("expected retention 31d default, got %d", cfg.RetentionDays)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("expected empty database url default, got %q", cfg.DatabaseURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"bad addr":         func(c *Config) { c.Addr = "no-port" },
		"zero timeout":     func(c *Config) { c.ProbeTimeout = 0 },
		"tiny timeout":     func(c *Config) { c.ProbeTimeout = time.Millisecond },
		"zero concurrency": func(c *Config) { c.ProbeConcurrency = 0 },
		"zero retention":   func(c *Config) { c.RetentionDays = 0 },
	}
	for name, mutate := range cases {
		c := validConfig()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestRetention(t *testing.T) {
	c := validConfig()
	if c.Retention() != 31*24*time.Hour {
		t.Fatalf("unexpected retention: %v", c.Retention())
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PROBE_CONCURRENCY", "7")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ProbeConcurrency != 7 {
		t.Fatalf("env override not applied, got %d", cfg.ProbeConcurrency)
	}
}
