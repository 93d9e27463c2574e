package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel              = "claude-sonnet-4-5-20250514"
	DefaultMaxTokens          = 4096
	DefaultMaxAppliesPerDay   = 10
	DefaultMaxMessagesPerDay  = 5
	DefaultAutoApplyThreshold = 80.0
	DefaultSuggestThreshold   = 50.0
	DefaultApplyRetries       = 2
	DefaultBufSize            = 100
	DefaultGraphUser          = "neo4j"
)

// Mode is the run mode gating side-effecting tools for the whole run.
type Mode string

const (
	ModeDryRun Mode = "dry_run"
	ModeReplay Mode = "replay"
	ModeCanary Mode = "canary"
	ModeLive   Mode = "live"
)

// ParseMode validates a mode string, defaulting to dry_run when empty.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDryRun, ModeReplay, ModeCanary, ModeLive:
		return Mode(s), nil
	case "":
		return ModeDryRun, nil
	}
	return "", fmt.Errorf("unknown mode %q (want dry_run, replay, canary or live)", s)
}

// AllowsSideEffects reports whether the mode permits side-effecting tools
// at all. Canary still enforces daily quotas on top of this.
func (m Mode) AllowsSideEffects() bool {
	return m == ModeCanary || m == ModeLive
}

type Config struct {
	Agent    AgentConfig    `json:"agent"`
	Keys     KeysConfig     `json:"keys"`
	Graph    GraphConfig    `json:"graph"`
	Calendar CalendarConfig `json:"calendar"`
	Channels ChannelsConfig `json:"channels"`
	Limits   LimitsConfig   `json:"limits"`
}

type AgentConfig struct {
	Mode      string `json:"mode"`
	Model     string `json:"model"`
	MaxTokens int    `json:"maxTokens"`
}

type KeysConfig struct {
	Anthropic string `json:"anthropic,omitempty"`
	Tavily    string `json:"tavily,omitempty"`
	Yutori    string `json:"yutori,omitempty"`
	Reka      string `json:"reka,omitempty"`
}

type GraphConfig struct {
	URI      string `json:"uri,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	Database string `json:"database,omitempty"`
}

type CalendarConfig struct {
	CredentialsFile string `json:"credentialsFile,omitempty"`
	CalendarID      string `json:"calendarId,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chatId,omitempty"`
}

type LimitsConfig struct {
	MaxAppliesPerDay  int `json:"maxAppliesPerDay"`
	MaxMessagesPerDay int `json:"maxMessagesPerDay"`
	ApplyRetries      int `json:"applyRetries"`
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Mode:      string(ModeDryRun),
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		Graph: GraphConfig{
			User: DefaultGraphUser,
		},
		Calendar: CalendarConfig{
			CalendarID: "primary",
		},
		Limits: LimitsConfig{
			MaxAppliesPerDay:  DefaultMaxAppliesPerDay,
			MaxMessagesPerDay: DefaultMaxMessagesPerDay,
			ApplyRetries:      DefaultApplyRetries,
		},
	}
}

func ConfigDir() string {
	if dir := os.Getenv("WINGMAN_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wingman")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// ProfilePath is where the onboarded user profile lives.
func ProfilePath() string {
	return filepath.Join(ConfigDir(), "profile.json")
}

// StatePath is the sqlite database holding run state and pending feedback.
func StatePath() string {
	return filepath.Join(ConfigDir(), "data", "state.db")
}

// CronStorePath is the persisted scheduled-jobs file.
func CronStorePath() string {
	return filepath.Join(ConfigDir(), "data", "cron", "jobs.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if mode := os.Getenv("WINGMAN_MODE"); mode != "" {
		cfg.Agent.Mode = mode
	}
	if key := os.Getenv("WINGMAN_API_KEY"); key != "" {
		cfg.Keys.Anthropic = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Keys.Anthropic == "" {
		cfg.Keys.Anthropic = key
	}
	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		cfg.Keys.Tavily = key
	}
	if key := os.Getenv("YUTORI_API_KEY"); key != "" {
		cfg.Keys.Yutori = key
	}
	if key := os.Getenv("REKA_API_KEY"); key != "" {
		cfg.Keys.Reka = key
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Graph.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Graph.User = user
	}
	if pw := os.Getenv("NEO4J_PASSWORD"); pw != "" {
		cfg.Graph.Password = pw
	}
	if token := os.Getenv("WINGMAN_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if chat := os.Getenv("WINGMAN_TELEGRAM_CHAT_ID"); chat != "" {
		if parsed, err := strconv.ParseInt(chat, 10, 64); err == nil {
			cfg.Channels.Telegram.ChatID = parsed
		}
	}

	if cfg.Agent.Model == "" {
		cfg.Agent.Model = DefaultModel
	}
	if cfg.Agent.MaxTokens <= 0 {
		cfg.Agent.MaxTokens = DefaultMaxTokens
	}
	if cfg.Graph.User == "" {
		cfg.Graph.User = DefaultGraphUser
	}
	if cfg.Limits.MaxAppliesPerDay <= 0 {
		cfg.Limits.MaxAppliesPerDay = DefaultMaxAppliesPerDay
	}
	if cfg.Limits.MaxMessagesPerDay <= 0 {
		cfg.Limits.MaxMessagesPerDay = DefaultMaxMessagesPerDay
	}
	if cfg.Limits.ApplyRetries < 0 {
		cfg.Limits.ApplyRetries = DefaultApplyRetries
	}

	if _, err := ParseMode(cfg.Agent.Mode); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Mode returns the parsed run mode. LoadConfig already validated it.
func (c *Config) Mode() Mode {
	m, err := ParseMode(c.Agent.Mode)
	if err != nil {
		return ModeDryRun
	}
	return m
}
