package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// validYAML returns a minimal valid configuration.
func validYAML() string {
	return `
db_path: /tmp/echoes.db
grant_secret: 0123456789abcdef0123
owner_id: "42"
`
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func wantConfigInvalid(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("err = %v, want ErrConfigInvalid", err)
	}
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validYAML()+`
night_window: 45s
day_window: 2m
min_players: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/echoes.db" {
		t.Errorf("DBPath = %q, want /tmp/echoes.db", cfg.DBPath)
	}
	if cfg.OwnerID != "42" {
		t.Errorf("OwnerID = %q, want 42", cfg.OwnerID)
	}
	if cfg.NightWindow != 45*time.Second {
		t.Errorf("NightWindow = %v, want 45s", cfg.NightWindow)
	}
	if cfg.DayWindow != 2*time.Minute {
		t.Errorf("DayWindow = %v, want 2m", cfg.DayWindow)
	}
	if cfg.MinPlayers != 5 {
		t.Errorf("MinPlayers = %d, want 5", cfg.MinPlayers)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "db_path: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validYAML())
	t.Setenv("ECHOES_DB_PATH", "/var/lib/echoes.db")
	t.Setenv("ECHOES_LOBBY_COUNTDOWN", "2m")
	t.Setenv("ECHOES_RATE_LIMIT_PER_MINUTE", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/var/lib/echoes.db" {
		t.Errorf("DBPath = %q, want env value", cfg.DBPath)
	}
	if cfg.LobbyCountdown != 2*time.Minute {
		t.Errorf("LobbyCountdown = %v, want 2m", cfg.LobbyCountdown)
	}
	if cfg.RateLimitPerMinute != 5 {
		t.Errorf("RateLimitPerMinute = %d, want 5", cfg.RateLimitPerMinute)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("ECHOES_DB_PATH", "/tmp/env.db")
	t.Setenv("ECHOES_GRANT_SECRET", "an-env-secret-of-length")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Errorf("DBPath = %q, want /tmp/env.db", cfg.DBPath)
	}
}

func TestLoad_MissingDBPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "grant_secret: 0123456789abcdef0123\n")
	_, err := Load(path)
	wantConfigInvalid(t, err)
}

func TestLoad_ShortSecret(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "db_path: /tmp/x.db\ngrant_secret: short\n")
	_, err := Load(path)
	wantConfigInvalid(t, err)
}

func TestLoad_TooFewPlayers(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validYAML()+"min_players: 2\n")
	_, err := Load(path)
	wantConfigInvalid(t, err)
}

func TestLoad_NegativeWindow(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validYAML()+"day_window: -5s\n")
	_, err := Load(path)
	wantConfigInvalid(t, err)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validYAML())

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9800" {
		t.Errorf("ListenAddr = %q, want :9800", cfg.ListenAddr)
	}
	if cfg.MinPlayers != 3 {
		t.Errorf("MinPlayers = %d, want 3", cfg.MinPlayers)
	}
	if cfg.NightWindow != 90*time.Second || cfg.DayWindow != 90*time.Second {
		t.Errorf("windows = %v/%v, want 90s/90s", cfg.NightWindow, cfg.DayWindow)
	}
	if cfg.LobbyCountdown != 60*time.Second || cfg.LobbyExtend != 30*time.Second {
		t.Errorf("lobby = %v/%v, want 60s/30s", cfg.LobbyCountdown, cfg.LobbyExtend)
	}
	if cfg.FinalEchoRound != 4 {
		t.Errorf("FinalEchoRound = %d, want 4", cfg.FinalEchoRound)
	}
	if cfg.TwistEvery != 3 || cfg.ShadeEvery != 4 {
		t.Errorf("TwistEvery/ShadeEvery = %d/%d, want 3/4", cfg.TwistEvery, cfg.ShadeEvery)
	}
	if cfg.RateLimitPerMinute != 30 {
		t.Errorf("RateLimitPerMinute = %d, want 30", cfg.RateLimitPerMinute)
	}
}
