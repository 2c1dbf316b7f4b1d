package heuristics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML override file on top of Defaults. Lists in the file
// replace the default lists; maps are merged key by key.
func Load(path string) (Tables, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return Tables{}, fmt.Errorf("failed to read heuristic tables: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML overrides on top of Defaults and validates the result.
func Parse(data []byte) (Tables, error) {
	tables := Defaults()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tables); err != nil && !errors.Is(err, io.EOF) {
		return Tables{}, fmt.Errorf("failed to parse heuristic tables: %w", err)
	}

	if err := tables.Validate(); err != nil {
		return Tables{}, err
	}
	return tables, nil
}

// Marshal renders tables as YAML, suitable as a starting point for overrides.
func Marshal(t Tables) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("failed to encode heuristic tables: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode heuristic tables: %w", err)
	}
	return buf.Bytes(), nil
}
