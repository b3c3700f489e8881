// Package token resolves shared secrets from config, files, or environment.
package token

import (
	"fmt"
	"os"
	"strings"
)

// Source names the places a secret can come from. Value wins over File,
// File wins over Env.
type Source struct {
	Value string
	File  string
	Env   string
}

// Resolve returns the secret for the source, or empty when nothing is set.
func Resolve(src Source) (string, error) {
	if v := strings.TrimSpace(src.Value); v != "" {
		return v, nil
	}
	if path := strings.TrimSpace(src.File); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read token file: %w", err)
		}
		v := strings.TrimSpace(string(data))
		if v == "" {
			return "", fmt.Errorf("token file %s is empty", path)
		}
		return v, nil
	}
	if name := strings.TrimSpace(src.Env); name != "" {
		return strings.TrimSpace(os.Getenv(name)), nil
	}
	return "", nil
}
