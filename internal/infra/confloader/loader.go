package confloader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "PAGEJOURNAL_"

// envLevelSeparator separates nesting levels in environment variable names.
const envLevelSeparator = "__"

// Origin names the source that last set a key.
type Origin string

const (
	OriginFile Origin = "file"
	OriginEnv  Origin = "env"
	OriginFlag Origin = "flag"
)

// Loader layers configuration sources and remembers which one set each key.
// Later sources win.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	origins   map[string]Origin
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// NewLoader creates a loader with no sources applied.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		origins:   make(map[string]Origin),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load applies the file and the environment, then unmarshals into target.
// Fields of target not present in any source keep their value.
// Flags are layered on top with LoadMap.
func (l *Loader) Load(target any) error {
	if err := l.LoadFile(l.filePath); err != nil {
		return fmt.Errorf("load config file: %w", err)
	}

	if err := l.LoadEnv(); err != nil {
		return err
	}

	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile applies a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.merge(file.Provider(path), yaml.Parser(), OriginFile); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// LoadEnv applies environment variables carrying the loader's prefix.
// PAGEJOURNAL_STORAGE__BADGER__GC_INTERVAL=5m sets storage.badger.gc_interval.
func (l *Loader) LoadEnv() error {
	if err := l.merge(env.Provider(l.envPrefix, ".", l.envKey), nil, OriginEnv); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

func (l *Loader) envKey(s string) string {
	s = strings.TrimPrefix(s, l.envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, envLevelSeparator, ".")
}

// LoadMap applies a map with dotted keys, e.g. command-line flags.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.merge(mapProvider(data), nil, OriginFlag); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// merge loads p on its own first so the keys it sets can be attributed.
func (l *Loader) merge(p koanf.Provider, parser koanf.Parser, origin Origin) error {
	layer := koanf.New(".")
	if err := layer.Load(p, parser); err != nil {
		return err
	}
	for _, key := range layer.Keys() {
		l.origins[key] = origin
	}
	return l.k.Merge(layer)
}

// Unmarshal decodes everything applied so far into target using koanf
// struct tags.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// Origin reports which source last set key.
func (l *Loader) Origin(key string) (Origin, bool) {
	o, ok := l.origins[key]
	return o, ok
}

// Origins returns a copy of the key to source mapping.
func (l *Loader) Origins() map[string]Origin {
	out := make(map[string]Origin, len(l.origins))
	for k, v := range l.origins {
		out[k] = v
	}
	return out
}

// Keys returns the sorted keys set by any source.
func (l *Loader) Keys() []string {
	keys := make([]string, 0, len(l.origins))
	for k := range l.origins {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
