package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/termdeck/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string         `mapstructure:"state_dir" yaml:"state_dir"`
	Models        ModelsConfig   `mapstructure:"models" yaml:"models"`
	Terminal      TerminalConfig `mapstructure:"terminal" yaml:"terminal"`
	Layout        LayoutConfig   `mapstructure:"layout" yaml:"layout"`
	Turn          TurnConfig     `mapstructure:"turn" yaml:"turn"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ModelsConfig controls allowed and default LLM models.
type ModelsConfig struct {
	Default         string   `mapstructure:"default" yaml:"default"`
	ReasoningEffort string   `mapstructure:"reasoning_effort" yaml:"reasoning_effort"`
	Allowed         []string `mapstructure:"allowed" yaml:"allowed"`
}

// TerminalConfig configures the remote terminal transport.
type TerminalConfig struct {
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	Token          string `mapstructure:"token" yaml:"token"`
	TokenFile      string `mapstructure:"token_file" yaml:"token_file"`
	MinCols        int    `mapstructure:"min_cols" yaml:"min_cols"`
	MinRows        int    `mapstructure:"min_rows" yaml:"min_rows"`
	FitDelayMs     int    `mapstructure:"fit_delay_ms" yaml:"fit_delay_ms"`
	FitMaxAttempts int    `mapstructure:"fit_max_attempts" yaml:"fit_max_attempts"`
}

// LayoutConfig configures the startup pane arrangement.
type LayoutConfig struct {
	DefaultMode       string  `mapstructure:"default_mode" yaml:"default_mode"`
	DefaultSplitRatio float64 `mapstructure:"default_split_ratio" yaml:"default_split_ratio"`
}

// TurnConfig configures the agent turn endpoint.
type TurnConfig struct {
	Endpoint           string `mapstructure:"endpoint" yaml:"endpoint"`
	ProgressMaxEntries int    `mapstructure:"progress_max_entries" yaml:"progress_max_entries"`
	SandboxMode        string `mapstructure:"sandbox_mode" yaml:"sandbox_mode"`
	ApprovalPolicy     string `mapstructure:"approval_policy" yaml:"approval_policy"`
	WorkingDirectory   string `mapstructure:"working_directory" yaml:"working_directory"`
	BaseURL            string `mapstructure:"base_url" yaml:"base_url"`
	APIKeyEnv          string `mapstructure:"api_key_env" yaml:"api_key_env"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".termdeck", "state"),
		Models: ModelsConfig{
			Default:         "gpt-5.2-codex",
			ReasoningEffort: "medium",
			Allowed:         []string{"gpt-5.2-codex", "gpt-5.1-codex-max", "gpt-5.1-codex-mini"},
		},
		Terminal: TerminalConfig{
			Endpoint:       "ws://127.0.0.1:8767/term",
			MinCols:        schema.DefaultMinCols,
			MinRows:        schema.DefaultMinRows,
			FitDelayMs:     int(schema.DefaultFitDelay / time.Millisecond),
			FitMaxAttempts: schema.DefaultFitMaxAttempts,
		},
		Layout: LayoutConfig{
			DefaultMode:       string(schema.LayoutSingle),
			DefaultSplitRatio: schema.DefaultSplitRatio,
		},
		Turn: TurnConfig{
			Endpoint:           "http://127.0.0.1:8765/turn",
			ProgressMaxEntries: schema.DefaultProgressMaxEntries,
			SandboxMode:        schema.DefaultSandboxMode,
			ApprovalPolicy:     schema.DefaultApprovalPolicy,
			APIKeyEnv:          "OPENAI_API_KEY",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".termdeck", "config.yaml"), nil
}

// ServiceConfig maps the config onto the core service configuration.
func (c Config) ServiceConfig() schema.ServiceConfig {
	return schema.ServiceConfig{
		TerminalEndpoint:  c.Terminal.Endpoint,
		MinCols:           c.Terminal.MinCols,
		MinRows:           c.Terminal.MinRows,
		FitDelay:          time.Duration(c.Terminal.FitDelayMs) * time.Millisecond,
		FitMaxAttempts:    c.Terminal.FitMaxAttempts,
		DefaultLayout:     schema.LayoutMode(c.Layout.DefaultMode),
		DefaultSplitRatio: c.Layout.DefaultSplitRatio,
	}
}

// TurnServiceConfig maps the config onto the turn controller configuration.
func (c Config) TurnServiceConfig() schema.TurnConfig {
	return schema.TurnConfig{
		Endpoint:              c.Turn.Endpoint,
		ProgressMaxEntries:    c.Turn.ProgressMaxEntries,
		DefaultSandboxMode:    c.Turn.SandboxMode,
		DefaultApprovalPolicy: c.Turn.ApprovalPolicy,
	}
}
