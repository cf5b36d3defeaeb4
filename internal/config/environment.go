package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/pgkeepalive/internal/probe"
)

// LoadEnvironment builds the check-cycle environment. Every entry of environ
// ("KEY=VALUE") is copied in as a string, except values holding a JSON object,
// which are decoded so that bindings such as
//
//	HYPERDRIVE_MAIN={"connectionString":"postgres://..."}
//
// are discovered. Entries from bindingsFile, when set, are added last and win.
func LoadEnvironment(environ []string, bindingsFile string) (probe.Environment, error) {
	env := make(probe.Environment, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = decodeValue(v)
	}

	if bindingsFile == "" {
		return env, nil
	}
	fromFile, err := ReadBindingsFile(bindingsFile)
	if err != nil {
		return nil, err
	}
	for k, v := range fromFile {
		env[k] = v
	}
	return env, nil
}

// ReadBindingsFile parses a YAML document of the form
//
//	PROD_DB:
//	  connectionString: postgres://...
func ReadBindingsFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bindings file: %w", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse bindings file %s: %w", path, err)
	}
	return out, nil
}

func decodeValue(v string) any {
	trimmed := strings.TrimSpace(v)
	if !strings.HasPrefix(trimmed, "{") {
		return v
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return v
	}
	return obj
}
