package schema

import "testing"

func TestNormalizeServiceConfigDefaults(t *testing.T) {
	cfg, err := NormalizeServiceConfig(ServiceConfig{TerminalEndpoint: "ws://localhost:1/ws/terminal"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.MinCols != DefaultMinCols || cfg.MinRows != DefaultMinRows {
		t.Fatalf("expected default minimums, got %dx%d", cfg.MinCols, cfg.MinRows)
	}
	if cfg.FitMaxAttempts != DefaultFitMaxAttempts {
		t.Fatalf("expected default fit attempts, got %d", cfg.FitMaxAttempts)
	}
	if cfg.DefaultLayout != LayoutSingle {
		t.Fatalf("expected single layout default, got %q", cfg.DefaultLayout)
	}
	if cfg.DefaultSplitRatio != DefaultSplitRatio {
		t.Fatalf("expected default split ratio, got %v", cfg.DefaultSplitRatio)
	}
}

func TestNormalizeServiceConfigRequiresEndpoint(t *testing.T) {
	if _, err := NormalizeServiceConfig(ServiceConfig{}); err == nil {
		t.Fatal("expected error for missing terminal endpoint")
	}
}

func TestNormalizeServiceConfigRejectsUnknownLayout(t *testing.T) {
	_, err := NormalizeServiceConfig(ServiceConfig{
		TerminalEndpoint: "ws://localhost:1/ws/terminal",
		DefaultLayout:    LayoutMode("grid9"),
	})
	if err == nil {
		t.Fatal("expected error for unknown layout mode")
	}
}

func TestClampSplitRatio(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0.0, 0.2},
		{0.19, 0.2},
		{0.2, 0.2},
		{0.5, 0.5},
		{0.8, 0.8},
		{0.95, 0.8},
	}
	for _, tc := range cases {
		if got := ClampSplitRatio(tc.in); got != tc.want {
			t.Fatalf("ClampSplitRatio(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLayoutPaneCapacity(t *testing.T) {
	cases := map[LayoutMode]int{
		LayoutSingle: 1,
		LayoutVSplit: 2,
		LayoutHSplit: 2,
		LayoutQuad:   4,
	}
	for mode, want := range cases {
		if got := mode.PaneCapacity(); got != want {
			t.Fatalf("PaneCapacity(%q) = %d, want %d", mode, got, want)
		}
	}
}

func TestNormalizeModelID(t *testing.T) {
	if _, err := NormalizeModelID("gpt-5.2-codex"); err != nil {
		t.Fatalf("valid model rejected: %v", err)
	}
	for _, bad := range []string{"", "  ", "model with spaces", "a/b"} {
		if _, err := NormalizeModelID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
