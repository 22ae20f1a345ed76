package template

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFixture reads a JSON or YAML file into generic values. The format is
// chosen by extension; anything that is not .json parses as YAML.
func LoadFixture(path string) (interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load fixture: %w", err)
	}

	var value interface{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("parse fixture %s: %w", path, err)
		}
		return value, nil
	}
	if err := yaml.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return normalizeYAML(value), nil
}

// ResolveFixture loads a fixture file and resolves its placeholders.
func (r *Resolver) ResolveFixture(ctx context.Context, path string) (interface{}, error) {
	value, err := LoadFixture(path)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, value)
}

// normalizeYAML rewrites map[interface{}]interface{} nodes, which yaml.v3
// can still produce for non-string keys, into map[string]interface{}.
func normalizeYAML(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, inner := range v {
			v[key] = normalizeYAML(inner)
		}
		return v
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, inner := range v {
			out[fmt.Sprintf("%v", key)] = normalizeYAML(inner)
		}
		return out
	case []interface{}:
		for i, inner := range v {
			v[i] = normalizeYAML(inner)
		}
		return v
	default:
		return value
	}
}
