package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load returns Defaults() overlaid with the YAML (or JSON) file at path, plus the raw bytes.
// An empty path yields the defaults. Unknown keys are rejected so typos fail fast.
func Load(path string) (*Config, []byte, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil, Validate(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := decode(data, cfg); err != nil {
		return nil, data, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, data, err
	}

	return cfg, data, nil
}

// Parse overlays data onto Defaults() and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := decode(data, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Hash generates SHA256 hash from Config (canonical JSON).
// Reports carry it so a result can be traced to the exact thresholds that produced it.
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
