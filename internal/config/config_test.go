package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joshsymonds/gmail-checker/internal/checker"
)

func TestLoadDefaults(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("GMAIL_CHECKER_SECRET_PATH", "")
	os.Unsetenv("GMAIL_CHECKER_SECRET_PATH")
	os.Unsetenv("GMAIL_CHECKER_FETCH_COUNT")
	os.Unsetenv("GMAIL_CHECKER_APP_DIR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.FetchCount != checker.DefaultFetchCount {
		t.Fatalf("expected default fetch count %d, got %d", checker.DefaultFetchCount, cfg.FetchCount)
	}
	if want := filepath.Join(tmp, ".mygmail_client_secret.json"); cfg.SecretPath != want {
		t.Fatalf("secret path %q want %q", cfg.SecretPath, want)
	}
	if want := filepath.Join(os.TempDir(), AppName); cfg.AppDir != want {
		t.Fatalf("app dir %q want %q", cfg.AppDir, want)
	}
	if filepath.Base(cfg.WatermarkPath()) != "gmail.storage" {
		t.Fatalf("unexpected watermark path %q", cfg.WatermarkPath())
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("GMAIL_CHECKER_SECRET_PATH", filepath.Join(tmp, "secret.json"))
	t.Setenv("GMAIL_CHECKER_FETCH_COUNT", "25")
	t.Setenv("GMAIL_CHECKER_APP_DIR", filepath.Join(tmp, "app"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.FetchCount != 25 {
		t.Fatalf("expected env override, got %d", cfg.FetchCount)
	}
	if cfg.SecretPath != filepath.Join(tmp, "secret.json") {
		t.Fatalf("unexpected secret path %q", cfg.SecretPath)
	}
	if cfg.TokenPath() != filepath.Join(tmp, "app", "token.json") {
		t.Fatalf("unexpected token path %q", cfg.TokenPath())
	}
	if err := EnsureAppDir(cfg); err != nil {
		t.Fatalf("ensure app dir: %v", err)
	}
	if info, err := os.Stat(cfg.AppDir); err != nil || !info.IsDir() {
		t.Fatalf("app dir not created: %v", err)
	}
}

func TestLoadRejectsBadFetchCount(t *testing.T) {
	for _, val := range []string{"0", "-3", "ten"} {
		t.Run(val, func(t *testing.T) {
			t.Setenv("GMAIL_CHECKER_FETCH_COUNT", val)
			if _, err := Load(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid for %q, got %v", val, err)
			}
		})
	}
}
