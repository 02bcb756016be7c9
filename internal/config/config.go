package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "ECHOES_"

// Config holds the engine's runtime configuration.
type Config struct {
	DBPath             string        `yaml:"db_path" env:"DB_PATH"`
	ArchiveDir         string        `yaml:"archive_dir" env:"ARCHIVE_DIR"`
	ListenAddr         string        `yaml:"listen_addr" env:"LISTEN_ADDR"`
	OwnerID            string        `yaml:"owner_id" env:"OWNER_ID"`
	GrantSecret        string        `yaml:"grant_secret" env:"GRANT_SECRET"`
	GrantTTL           time.Duration `yaml:"grant_ttl" env:"GRANT_TTL"`
	MinPlayers         int           `yaml:"min_players" env:"MIN_PLAYERS"`
	NightWindow        time.Duration `yaml:"night_window" env:"NIGHT_WINDOW"`
	DayWindow          time.Duration `yaml:"day_window" env:"DAY_WINDOW"`
	EchoWindow         time.Duration `yaml:"echo_window" env:"ECHO_WINDOW"`
	LobbyCountdown     time.Duration `yaml:"lobby_countdown" env:"LOBBY_COUNTDOWN"`
	LobbyExtend        time.Duration `yaml:"lobby_extend" env:"LOBBY_EXTEND"`
	FinalEchoRound     int           `yaml:"final_echo_round" env:"FINAL_ECHO_ROUND"`
	TwistEvery         int           `yaml:"twist_every" env:"TWIST_EVERY"`
	ShadeEvery         int           `yaml:"shade_every" env:"SHADE_EVERY"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE"`
	PolicyFile         string        `yaml:"policy_file" env:"POLICY_FILE"`
	OTelEndpoint       string        `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`
}

// Load reads an optional YAML file, overlays ECHOES_* environment variables,
// applies defaults, and validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9800"
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = "archive"
	}
	if c.GrantTTL == 0 {
		c.GrantTTL = 12 * time.Hour
	}
	if c.MinPlayers == 0 {
		c.MinPlayers = 3
	}
	if c.NightWindow == 0 {
		c.NightWindow = 90 * time.Second
	}
	if c.DayWindow == 0 {
		c.DayWindow = 90 * time.Second
	}
	if c.EchoWindow == 0 {
		c.EchoWindow = 60 * time.Second
	}
	if c.LobbyCountdown == 0 {
		c.LobbyCountdown = 60 * time.Second
	}
	if c.LobbyExtend == 0 {
		c.LobbyExtend = 30 * time.Second
	}
	if c.FinalEchoRound == 0 {
		c.FinalEchoRound = 4
	}
	if c.TwistEvery == 0 {
		c.TwistEvery = 3
	}
	if c.ShadeEvery == 0 {
		c.ShadeEvery = 4
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 30
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if len(c.GrantSecret) < 16 {
		problems = append(problems, "grant_secret must be at least 16 bytes")
	}
	if c.MinPlayers < 3 {
		problems = append(problems, "min_players must be at least 3")
	}
	for name, d := range map[string]time.Duration{
		"night_window":    c.NightWindow,
		"day_window":      c.DayWindow,
		"echo_window":     c.EchoWindow,
		"lobby_countdown": c.LobbyCountdown,
		"lobby_extend":    c.LobbyExtend,
		"grant_ttl":       c.GrantTTL,
	} {
		if d < 0 {
			problems = append(problems, name+" must not be negative")
		}
	}
	if c.FinalEchoRound < 1 {
		problems = append(problems, "final_echo_round must be positive")
	}
	if c.TwistEvery < 0 || c.ShadeEvery < 0 || c.RateLimitPerMinute < 0 {
		problems = append(problems, "twist_every, shade_every and rate_limit_per_minute must not be negative")
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
