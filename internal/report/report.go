// Package report exports run results to files: a JSON summary, a standalone
// HTML page and JUnit XML for CI systems.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xdung24/restload/internal/runner"
)

// Format is a report file format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatHTML  Format = "html"
	FormatJUnit Format = "junit"
)

// FormatForPath picks the report format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".xml":
		return FormatJUnit, nil
	}
	return "", fmt.Errorf("cannot infer report format from %q (use .json, .html or .xml)", path)
}

// WriteFile renders result in the format implied by path and writes it.
func WriteFile(result *runner.Result, path string) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case FormatJSON:
		data, err = JSON(result)
	case FormatHTML:
		var s string
		s, err = HTML(result)
		data = []byte(s)
	case FormatJUnit:
		data, err = JUnit(result)
	}
	if err != nil {
		return fmt.Errorf("failed to render %s report: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
