package overlay

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultExt is used for derived files when the base file has no extension.
const DefaultExt = ".yaml"

// FileName returns the name of the derived configuration file for a run.
func FileName(runID, ext string) string {
	if ext == "" {
		ext = DefaultExt
	}
	return "temp_config_" + runID + ext
}

// Load reads a YAML configuration tree from path.
func Load(path string) (Tree, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read base configuration: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parse base configuration %s: %w", path, err)
	}
	if raw == nil {
		return Tree{}, nil
	}
	return normalizeValue(raw).(Tree), nil
}

// Write serializes t into dir under FileName(runID, ext) and returns the path.
// An existing file with the same name is replaced.
func Write(dir, runID, ext string, t Tree) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return "", fmt.Errorf("encode derived configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode derived configuration: %w", err)
	}
	path := filepath.Join(dir, FileName(runID, ext))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write derived configuration: %w", err)
	}
	return path, nil
}
