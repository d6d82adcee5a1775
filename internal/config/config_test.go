package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("SONGROOM_MODE", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.MaxUploadBytes != 50<<20 || cfg.ReconcileInterval != 5*time.Second {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.DefaultMaxSongsPerUser != 10 || cfg.DefaultSongsPerRound != 1 {
		t.Fatalf("song defaults = %+v", cfg)
	}
	if cfg.JWTSecret != DefaultJWTSecret {
		t.Fatalf("jwt secret default = %q", cfg.JWTSecret)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("SONGROOM_PORT", "9090")

	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := "mode: debug\nport: 7000\nreconcile_interval: 2s\nlog_level: warn\n"
	if err := os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "debug" || cfg.ReconcileInterval != 2*time.Second {
		t.Fatalf("file values = %+v", cfg)
	}
	if cfg.Port != 9090 {
		t.Fatalf("env override port = %d", cfg.Port)
	}
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("log level = %s", zerolog.GlobalLevel())
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("SONGROOM_MODE", "debug")
	t.Setenv("SONGROOM_RECONCILE_INTERVAL", "0s")
	if _, err := Load(); err == nil {
		t.Fatalf("zero reconcile interval accepted")
	}
}

func TestReleaseRequiresSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "test")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("release with default secrets: %v", err)
	}

	valid := func() Config {
		return Config{
			Mode: "release", Port: 8080, MaxUploadBytes: 1, ReconcileInterval: time.Second,
			CommandRate: 1, CommandWindow: time.Second, DefaultMaxSongsPerUser: 1, DefaultSongsPerRound: 1,
			Secret: "a-real-session-secret", JWTSecret: "a-real-jwt-secret",
		}
	}
	cases := []struct {
		name  string
		tweak func(*Config)
		want  string
	}{
		{"ok", func(*Config) {}, ""},
		{"empty jwt", func(c *Config) { c.JWTSecret = "" }, "jwt_secret"},
		{"default jwt", func(c *Config) { c.JWTSecret = DefaultJWTSecret }, "jwt_secret"},
		{"empty session", func(c *Config) { c.Secret = "" }, "secret"},
		{"default session", func(c *Config) { c.Secret = DefaultSessionSecret }, "secret"},
		{"debug keeps defaults", func(c *Config) {
			c.Mode = "debug"
			c.Secret, c.JWTSecret = DefaultSessionSecret, DefaultJWTSecret
		}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.tweak(&c)
			err := c.Validate()
			switch {
			case tc.want == "" && err != nil:
				t.Fatalf("unexpected error: %v", err)
			case tc.want != "" && (err == nil || !strings.Contains(err.Error(), tc.want)):
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}
