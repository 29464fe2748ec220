package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/joshsymonds/gmail-checker/internal/checker"
)

const (
	AppName   = "gmail_checker"
	EnvPrefix = "GMAIL_CHECKER"

	tokenFile     = "token.json"
	watermarkFile = "gmail.storage"
)

// ErrInvalid marks configuration that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	SecretPath string `mapstructure:"secret_path"`
	FetchCount int    `mapstructure:"fetch_count"`
	AppDir     string `mapstructure:"app_dir"`
}

// TokenPath is where the OAuth token is cached.
func (c Config) TokenPath() string { return filepath.Join(c.AppDir, tokenFile) }

// WatermarkPath is where the last-checked timestamp lives.
func (c Config) WatermarkPath() string { return filepath.Join(c.AppDir, watermarkFile) }

func DefaultConfig() Config {
	secret := ".mygmail_client_secret.json"
	if home, err := os.UserHomeDir(); err == nil {
		secret = filepath.Join(home, secret)
	}
	return Config{
		SecretPath: secret,
		FetchCount: checker.DefaultFetchCount,
		AppDir:     filepath.Join(os.TempDir(), AppName),
	}
}

// Load reads configuration from GMAIL_CHECKER_* environment variables.
func Load() (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("secret_path", cfg.SecretPath)
	v.SetDefault("fetch_count", cfg.FetchCount)
	v.SetDefault("app_dir", cfg.AppDir)
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.SecretPath) == "" {
		return fmt.Errorf("%w: %s_SECRET_PATH is empty", ErrInvalid, EnvPrefix)
	}
	if cfg.FetchCount <= 0 {
		return fmt.Errorf("%w: %s_FETCH_COUNT must be positive, got %d", ErrInvalid, EnvPrefix, cfg.FetchCount)
	}
	if strings.TrimSpace(cfg.AppDir) == "" {
		return fmt.Errorf("%w: %s_APP_DIR is empty", ErrInvalid, EnvPrefix)
	}
	return nil
}

// EnsureAppDir creates the application directory.
func EnsureAppDir(cfg Config) error {
	if err := os.MkdirAll(cfg.AppDir, 0o700); err != nil {
		return fmt.Errorf("ensure app dir: %w", err)
	}
	return nil
}
