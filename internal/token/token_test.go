package token

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePrefersLiteralValue(t *testing.T) {
	got, err := Resolve(Source{Value: " abc ", File: "/does/not/exist", Env: "NOPE"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestResolveReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Resolve(Source{File: path})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "s3cret" {
		t.Fatalf("expected s3cret, got %q", got)
	}
}

func TestResolveEmptyFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Resolve(Source{File: path}); err == nil {
		t.Fatalf("expected error for empty token file")
	}
}

func TestResolveMissingFileFails(t *testing.T) {
	if _, err := Resolve(Source{File: filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Fatalf("expected error for missing token file")
	}
}

func TestResolveFallsBackToEnv(t *testing.T) {
	t.Setenv("TD_TEST_TOKEN", " from-env ")
	got, err := Resolve(Source{Env: "TD_TEST_TOKEN"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "from-env" {
		t.Fatalf("expected from-env, got %q", got)
	}
}

func TestResolveNothingSetIsEmpty(t *testing.T) {
	got, err := Resolve(Source{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}
