// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildspec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a Spec. The input format is plain JSON
// extended with // line comments, /* block comments */, and trailing
// commas.
func Parse(data []byte) (*Spec, error) {
	stripped := jsonc.ToJSON(data)

	var spec Spec
	if err := json.Unmarshal(stripped, &spec); err != nil {
		return nil, fmt.Errorf("parsing specification: %w", err)
	}
	return &spec, nil
}

// ParseYAML unmarshals a YAML specification document into a Spec.
// Unknown fields are rejected so a typo'd key fails loudly instead of
// silently producing a default.
func ParseYAML(data []byte) (*Spec, error) {
	var spec Spec
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing specification: %w", err)
	}
	return &spec, nil
}

// Load reads a specification document from disk, parses it according
// to its extension (.yaml/.yml for YAML, anything else JSONC), and
// validates it. A malformed or unreadable document fails here, before
// any namespace or mount operation has run.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var spec *Spec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		spec, err = ParseYAML(data)
	default:
		spec, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}
