package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vmform/internal/ir"
)

// loadValues reads a YAML (or JSON) document of form values.
// An empty file yields an empty object.
func loadValues(path string) (ir.IRObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read values %s: %w", path, err)
	}

	var raw map[string]any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse values %s: %w", path, err)
	}

	values, err := ir.ObjectFromGo(raw)
	if err != nil {
		return nil, fmt.Errorf("values %s: %w", path, err)
	}
	return values, nil
}
