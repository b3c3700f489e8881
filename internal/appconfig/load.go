package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/termdeck/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("models.default", cfg.Models.Default)
	v.SetDefault("models.reasoning_effort", cfg.Models.ReasoningEffort)
	v.SetDefault("models.allowed", cfg.Models.Allowed)
	v.SetDefault("terminal.endpoint", cfg.Terminal.Endpoint)
	v.SetDefault("terminal.token", cfg.Terminal.Token)
	v.SetDefault("terminal.token_file", cfg.Terminal.TokenFile)
	v.SetDefault("terminal.min_cols", cfg.Terminal.MinCols)
	v.SetDefault("terminal.min_rows", cfg.Terminal.MinRows)
	v.SetDefault("terminal.fit_delay_ms", cfg.Terminal.FitDelayMs)
	v.SetDefault("terminal.fit_max_attempts", cfg.Terminal.FitMaxAttempts)
	v.SetDefault("layout.default_mode", cfg.Layout.DefaultMode)
	v.SetDefault("layout.default_split_ratio", cfg.Layout.DefaultSplitRatio)
	v.SetDefault("turn.endpoint", cfg.Turn.Endpoint)
	v.SetDefault("turn.progress_max_entries", cfg.Turn.ProgressMaxEntries)
	v.SetDefault("turn.sandbox_mode", cfg.Turn.SandboxMode)
	v.SetDefault("turn.approval_policy", cfg.Turn.ApprovalPolicy)
	v.SetDefault("turn.working_directory", cfg.Turn.WorkingDirectory)
	v.SetDefault("turn.base_url", cfg.Turn.BaseURL)
	v.SetDefault("turn.api_key_env", cfg.Turn.APIKeyEnv)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
		if !v.IsSet("terminal.endpoint") {
			return Config{}, fmt.Errorf("terminal.endpoint is required for config_version %d", CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if err := validateEndpoint("terminal.endpoint", cfg.Terminal.Endpoint, "ws", "wss"); err != nil {
		return err
	}
	if err := validateEndpoint("turn.endpoint", cfg.Turn.Endpoint, "http", "https"); err != nil {
		return err
	}
	if mode := schema.LayoutMode(cfg.Layout.DefaultMode); !mode.Valid() {
		return fmt.Errorf("layout.default_mode %q is not a known mode", cfg.Layout.DefaultMode)
	}
	if cfg.Terminal.Token != "" && cfg.Terminal.TokenFile != "" {
		return fmt.Errorf("terminal.token and terminal.token_file are mutually exclusive")
	}
	return nil
}

func validateEndpoint(key, endpoint string, schemes ...string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return fmt.Errorf("%s is required", key)
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("%s must include scheme and host", key)
	}
	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("%s must use one of %s", key, strings.Join(schemes, ", "))
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Terminal.Endpoint = expandEnv(cfg.Terminal.Endpoint)
	cfg.Terminal.TokenFile = expandEnv(cfg.Terminal.TokenFile)
	cfg.Turn.Endpoint = expandEnv(cfg.Turn.Endpoint)
	cfg.Turn.WorkingDirectory = expandEnv(cfg.Turn.WorkingDirectory)
	cfg.Turn.BaseURL = expandEnv(cfg.Turn.BaseURL)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
