// Package config holds the bot configuration: a JSON file with
// environment variable overrides applied on top.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/crestline/triagebot/pkg/taxonomy"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "U123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Gateway  GatewayConfig     `json:"gateway"`
	Slack    SlackConfig       `json:"slack"`
	Store    StoreConfig       `json:"store"`
	Triage   TriageConfig      `json:"triage"`
	Reminder ReminderConfig    `json:"reminder"`
	Taxonomy taxonomy.Taxonomy `json:"taxonomy"`
}

type GatewayConfig struct {
	Host string `env:"TRIAGEBOT_GATEWAY_HOST" json:"host"`
	Port int    `env:"TRIAGEBOT_GATEWAY_PORT" json:"port"`
}

type SlackConfig struct {
	ClientID      string              `env:"TRIAGEBOT_SLACK_CLIENT_ID"      json:"client_id"`
	ClientSecret  string              `env:"TRIAGEBOT_SLACK_CLIENT_SECRET"  json:"client_secret"`
	SigningSecret string              `env:"TRIAGEBOT_SLACK_SIGNING_SECRET" json:"signing_secret"`
	RedirectURL   string              `env:"TRIAGEBOT_SLACK_REDIRECT_URL"   json:"redirect_url,omitempty"`
	AllowFrom     FlexibleStringSlice `env:"TRIAGEBOT_SLACK_ALLOW_FROM"     json:"allow_from,omitempty"`
}

type StoreConfig struct {
	// Driver is "memory" or "postgres".
	Driver      string `env:"TRIAGEBOT_STORE_DRIVER"       json:"driver"`
	DatabaseURL string `env:"TRIAGEBOT_STORE_DATABASE_URL" json:"database_url,omitempty"`
}

type TriageConfig struct {
	DefaultWindowHours int `env:"TRIAGEBOT_TRIAGE_DEFAULT_WINDOW_HOURS" json:"default_window_hours"`
	PageSize           int `env:"TRIAGEBOT_TRIAGE_PAGE_SIZE"            json:"page_size"`
	MaxPages           int `env:"TRIAGEBOT_TRIAGE_MAX_PAGES"            json:"max_pages"`
	MaxRunMinutes      int `env:"TRIAGEBOT_TRIAGE_MAX_RUN_MINUTES"      json:"max_run_minutes"`
	Workers            int `env:"TRIAGEBOT_TRIAGE_WORKERS"              json:"workers"`
}

type ReminderConfig struct {
	Enabled  bool   `env:"TRIAGEBOT_REMINDER_ENABLED"  json:"enabled"`
	Schedule string `env:"TRIAGEBOT_REMINDER_SCHEDULE" json:"schedule"`
	Text     string `env:"TRIAGEBOT_REMINDER_TEXT"     json:"text"`
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Triage: TriageConfig{
			DefaultWindowHours: 7,
			PageSize:           200,
			MaxPages:           25,
			MaxRunMinutes:      2,
			Workers:            4,
		},
		Reminder: ReminderConfig{
			Enabled:  false,
			Schedule: "0 9 * * 1-5",
			Text:     "Daily reminder: run /triage in your incident channels to catch up on open reports.",
		},
		Taxonomy: taxonomy.Default(),
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, cfg.Validate()
		}
		return nil, err
	}

	// Pre-scan the JSON to see whether the user supplies their own
	// taxonomy. Go's JSON decoder merges into existing slices rather
	// than replacing them, so a partial user taxonomy would otherwise
	// inherit default entries at overlapping index positions.
	var tmp Config
	if err := json.Unmarshal(data, &tmp); err != nil {
		return nil, err
	}
	if len(tmp.Taxonomy.Levels) > 0 || len(tmp.Taxonomy.Statuses) > 0 {
		cfg.Taxonomy = taxonomy.Taxonomy{}
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate rejects configurations the serve command cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return errors.New("store.database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Triage.DefaultWindowHours <= 0 {
		return errors.New("triage.default_window_hours must be positive")
	}
	if c.Triage.PageSize <= 0 || c.Triage.MaxPages <= 0 {
		return errors.New("triage.page_size and triage.max_pages must be positive")
	}
	if c.Triage.Workers <= 0 {
		return errors.New("triage.workers must be positive")
	}

	return c.Taxonomy.Validate()
}

// ListenAddr joins the gateway host and port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}
