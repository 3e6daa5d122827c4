package clientschema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the encoding of a schema description.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath infers the description format from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// LoadFile reads, parses, and validates a schema description file.
func LoadFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read schema file %q: %w", path, err)
	}
	schema, err := Parse(data, FormatForPath(path))
	if err != nil {
		return Schema{}, fmt.Errorf("failed to load schema file %q: %w", path, err)
	}
	return schema, nil
}

// Parse decodes and validates a schema description. Both a top-level
// {models: [...]} document and a bare list of models are accepted.
func Parse(data []byte, format Format) (Schema, error) {
	var schema Schema
	switch format {
	case FormatJSON:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &schema.Models); err != nil {
				return Schema{}, fmt.Errorf("invalid schema json: %w", err)
			}
		} else {
			dec := json.NewDecoder(bytes.NewReader(trimmed))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&schema); err != nil {
				return Schema{}, fmt.Errorf("invalid schema json: %w", err)
			}
		}
	case FormatYAML:
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return Schema{}, fmt.Errorf("invalid schema yaml: %w", err)
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			if err := node.Content[0].Decode(&schema.Models); err != nil {
				return Schema{}, fmt.Errorf("invalid schema yaml: %w", err)
			}
		} else {
			dec := yaml.NewDecoder(bytes.NewReader(data))
			dec.KnownFields(true)
			if err := dec.Decode(&schema); err != nil {
				return Schema{}, fmt.Errorf("invalid schema yaml: %w", err)
			}
		}
	default:
		return Schema{}, fmt.Errorf("unsupported schema format %q", format)
	}

	if err := schema.Validate(); err != nil {
		return Schema{}, err
	}
	return schema, nil
}
