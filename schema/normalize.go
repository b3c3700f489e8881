package schema

import (
	"strings"
	"unicode"
)

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if strings.TrimSpace(cfg.TerminalEndpoint) == "" {
		return ServiceConfig{}, ErrInvalidRequest
	}
	if cfg.MinCols <= 0 {
		cfg.MinCols = DefaultMinCols
	}
	if cfg.MinRows <= 0 {
		cfg.MinRows = DefaultMinRows
	}
	if cfg.FitDelay <= 0 {
		cfg.FitDelay = DefaultFitDelay
	}
	if cfg.FitMaxAttempts <= 0 {
		cfg.FitMaxAttempts = DefaultFitMaxAttempts
	}
	if cfg.DefaultLayout == "" {
		cfg.DefaultLayout = LayoutSingle
	}
	if !cfg.DefaultLayout.Valid() {
		return ServiceConfig{}, ErrInvalidLayout
	}
	if cfg.DefaultSplitRatio == 0 {
		cfg.DefaultSplitRatio = DefaultSplitRatio
	}
	cfg.DefaultSplitRatio = ClampSplitRatio(cfg.DefaultSplitRatio)
	return cfg, nil
}

// NormalizeTurnConfig applies defaults and validates the config.
func NormalizeTurnConfig(cfg TurnConfig) (TurnConfig, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return TurnConfig{}, ErrInvalidRequest
	}
	if cfg.ProgressMaxEntries <= 0 {
		cfg.ProgressMaxEntries = DefaultProgressMaxEntries
	}
	if cfg.DefaultSandboxMode == "" {
		cfg.DefaultSandboxMode = DefaultSandboxMode
	}
	if cfg.DefaultApprovalPolicy == "" {
		cfg.DefaultApprovalPolicy = DefaultApprovalPolicy
	}
	return cfg, nil
}

// ClampSplitRatio bounds the agent split ratio to [0.2, 0.8].
func ClampSplitRatio(ratio float64) float64 {
	if ratio < 0.2 {
		return 0.2
	}
	if ratio > 0.8 {
		return 0.8
	}
	return ratio
}

// NormalizeModelID validates and normalizes a model identifier.
// Allowed characters: A-Z, a-z, 0-9, '.', '_', '-'.
func NormalizeModelID(model string) (ModelID, error) {
	trimmed := strings.TrimSpace(model)
	if trimmed == "" {
		return "", ErrInvalidRequest
	}
	for _, r := range trimmed {
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return "", ErrInvalidRequest
	}
	return ModelID(trimmed), nil
}
