package clash

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goyaml "github.com/goccy/go-yaml"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRule is returned when a rule targets a group the template does
// not define.
var ErrInvalidRule = errors.New("invalid rule")

// ValidateRules checks that every rule with a target names a known group.
// Rules with fewer than three comma-separated parts are only accepted when
// they are the MATCH catch-all.
func ValidateRules(rules []string, known map[string]struct{}) error {
	for i, rule := range rules {
		parts := strings.Split(rule, ",")
		if len(parts) < 3 {
			if strings.Contains(rule, "MATCH") {
				continue
			}
			return fmt.Errorf("%w: #%d %q has no target", ErrInvalidRule, i, rule)
		}
		if _, ok := known[parts[2]]; !ok {
			return fmt.Errorf("%w: #%d %q targets unknown group %q", ErrInvalidRule, i, rule, parts[2])
		}
	}
	return nil
}

// Encode serialises cfg with two-space indentation. Emoji and CJK text are
// written literally, never as escape sequences.
func Encode(cfg *Config) ([]byte, error) {
	out, err := goyaml.MarshalWithOptions(cfg, goyaml.Indent(2), goyaml.IndentSequence(true))
	if err != nil {
		return nil, fmt.Errorf("failed to encode clash config: %w", err)
	}
	return out, nil
}

// Decode parses an artifact or template.
func Decode(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode clash config: %w", err)
	}
	return &cfg, nil
}

// LoadFile reads and decodes the file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cfg, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SaveFile encodes cfg and replaces path atomically.
func SaveFile(path string, cfg *Config) error {
	data, err := Encode(cfg)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// WriteFile writes data to a temp file next to path and renames it over path,
// so readers never observe a partial artifact.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
