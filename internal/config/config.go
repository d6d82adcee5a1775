package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Placeholder secrets shipped as defaults. Release mode refuses to start with them.
const (
	DefaultSessionSecret = "change-me-session-secret"
	DefaultJWTSecret     = "change-me-jwt-secret-0123456789"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	Secret    string        `mapstructure:"secret"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`

	DBPath           string `mapstructure:"db_path"`
	UploadDir        string `mapstructure:"upload_dir"`
	PublicUploadPath string `mapstructure:"public_upload_path"`
	MaxUploadBytes   int64  `mapstructure:"max_upload_bytes"`

	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	PingPeriod        time.Duration `mapstructure:"ping_period"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ReadLimit         int64         `mapstructure:"read_limit"`
	SubscriberBuffer  int           `mapstructure:"subscriber_buffer"`
	Backpressure      string        `mapstructure:"backpressure"`
	CommandRate       int           `mapstructure:"command_rate"`
	CommandWindow     time.Duration `mapstructure:"command_window"`

	DefaultMaxSongsPerUser int `mapstructure:"default_max_songs_per_user"`
	DefaultSongsPerRound   int `mapstructure:"default_songs_per_round"`

	ValkeyAddr string `mapstructure:"valkey_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", DefaultSessionSecret)
	v.SetDefault("jwt_secret", DefaultJWTSecret)
	v.SetDefault("token_ttl", "168h")
	v.SetDefault("db_path", "./data/songroom.db")
	v.SetDefault("upload_dir", "./data/uploads")
	v.SetDefault("public_upload_path", "/uploads")
	v.SetDefault("max_upload_bytes", 50<<20)
	v.SetDefault("reconcile_interval", "5s")
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("subscriber_buffer", 32)
	v.SetDefault("backpressure", "disconnect")
	v.SetDefault("command_rate", 20)
	v.SetDefault("command_window", "10s")
	v.SetDefault("default_max_songs_per_user", 10)
	v.SetDefault("default_songs_per_round", 1)
	v.SetDefault("valkey_addr", "")
}

// Load reads .env, then config/config.<CONFIG_ENV>.yaml, then SONGROOM_* env vars.
// When the file exists it is watched and log_level changes apply live.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg(".env not loaded")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("SONGROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		fileLoaded = false
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ApplyLogLevel(cfg.LogLevel)

	if fileLoaded {
		v.OnConfigChange(func(e fsnotify.Event) {
			level := v.GetString("log_level")
			ApplyLogLevel(level)
			log.Info().Str("module", "config").Str("file", e.Name).Str("log_level", level).Msg("config reloaded")
		})
		v.WatchConfig()
	}

	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("db", cfg.DBPath).Bool("valkey", cfg.ValkeyAddr != "").Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.MaxUploadBytes <= 0:
		return errors.New("max_upload_bytes must be positive")
	case c.ReconcileInterval <= 0:
		return errors.New("reconcile_interval must be positive")
	case c.CommandRate <= 0 || c.CommandWindow <= 0:
		return errors.New("command_rate and command_window must be positive")
	case c.DefaultMaxSongsPerUser <= 0 || c.DefaultSongsPerRound <= 0:
		return errors.New("default song limits must be positive")
	}
	if c.Mode == "release" {
		if c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret {
			return errors.New("jwt_secret must be set in release mode")
		}
		if c.Secret == "" || c.Secret == DefaultSessionSecret {
			return errors.New("secret must be set in release mode")
		}
	}
	return nil
}

// ApplyLogLevel sets the global zerolog level, keeping the current one on bad input.
func ApplyLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		log.Warn().Str("module", "config").Str("log_level", level).Msg("unknown log level")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}
