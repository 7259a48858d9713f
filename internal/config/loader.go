package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses a scenario file.
//
// The format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	return Parse(data, path)
}

// Parse parses scenario file data. Unknown or missing extensions are read as
// YAML, which also accepts JSON.
func Parse(data []byte, path string) (*File, error) {
	var f File

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse JSON scenario: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML scenario: %w", err)
		}
	}

	return &f, nil
}

// Marshal encodes f as YAML, or as indented JSON when path ends in .json.
func Marshal(f *File, path string) ([]byte, error) {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return json.MarshalIndent(f, "", "  ")
	}
	return yaml.Marshal(f)
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
//
// An empty string is a zero duration.
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}
