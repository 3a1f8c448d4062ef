// Package fileconf loads default values from a JSON or YAML configuration
// file and flattens nested mappings into the underscore-joined keys of the
// parsed namespace.
package fileconf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and flattens the file at path. A missing or unreadable file is
// a fatal error. YAML is a superset of JSON, so one decoder covers both.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("cannot parse configuration file %s: %w", path, err)
	}
	return Flatten(raw)
}

// Flatten joins nested mapping keys with underscores. Two distinct source
// keys flattening to the same joined key is a fatal error, never a silent
// override.
func Flatten(m map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if err := flattenInto(out, "", m); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out map[string]any, prefix string, m map[string]any) error {
	for k, v := range m {
		key := prefix + k
		if sub, ok := v.(map[string]any); ok {
			if err := flattenInto(out, key+"_", sub); err != nil {
				return err
			}
			continue
		}
		if _, dup := out[key]; dup {
			return fmt.Errorf("collision between keys in config file on key %s", key)
		}
		out[key] = v
	}
	return nil
}
