package config

import (
	"fmt"

	"github.com/yndnr/pagejournal/internal/infra/confloader"
)

// Resolved is a verified configuration plus the source of every key that
// did not come from Default.
type Resolved struct {
	*Config
	Origins map[string]confloader.Origin
}

// Origin reports where key was set, "default" when no source set it.
func (r *Resolved) Origin(key string) string {
	if o, ok := r.Origins[key]; ok {
		return string(o)
	}
	return "default"
}

// Resolve builds the configuration from defaults, the optional YAML file at
// path, the environment and overrides, then verifies it.
//
// overrides uses dotted keys, e.g. "storage.engine".
func Resolve(path string, overrides map[string]any) (*Resolved, error) {
	cfg := Default()

	loader := confloader.NewLoader(confloader.WithConfigFile(path))
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, err
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal overrides: %w", err)
		}
	}

	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Resolved{Config: cfg, Origins: loader.Origins()}, nil
}

// Load is Resolve without the origins.
func Load(path string, overrides map[string]any) (*Config, error) {
	r, err := Resolve(path, overrides)
	if err != nil {
		return nil, err
	}
	return r.Config, nil
}
