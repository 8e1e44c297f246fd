// pkg/config/source.go
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by EnvSource.
const EnvPrefix = "WEBPRINT_"

// ConfigSource is one configuration layer. Sources are loaded in priority
// order (lowest first); later sources override earlier values.
//
//   - DefaultSource (10): hardcoded defaults
//   - FileSource (20): config file (e.g., ~/.webprint/config.yaml)
//   - EnvSource (30): WEBPRINT_* environment variables
//   - FlagSource (40): command-line flags
type ConfigSource interface {
	Name() string
	Priority() int
	Load(k *koanf.Koanf) error
}

// DefaultSource provides hardcoded default configuration values.
type DefaultSource struct{}

func (s *DefaultSource) Name() string  { return "defaults" }
func (s *DefaultSource) Priority() int { return 10 }

func (s *DefaultSource) Load(k *koanf.Koanf) error {
	if err := k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil); err != nil {
		return fmt.Errorf("error loading defaults: %w", err)
	}
	return nil
}

// MapSource loads a fixed set of dotted keys at a chosen priority. It is
// useful for embedding callers and tests.
type MapSource struct {
	Label  string
	Level  int
	Values map[string]interface{}
}

func (s *MapSource) Name() string  { return "map:" + s.Label }
func (s *MapSource) Priority() int { return s.Level }

func (s *MapSource) Load(k *koanf.Koanf) error {
	if err := k.Load(confmap.Provider(s.Values, "."), nil); err != nil {
		return fmt.Errorf("error loading %s: %w", s.Name(), err)
	}
	return nil
}

// FileSource loads configuration from a YAML file. A missing file or an
// empty path is skipped.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string  { return "file:" + s.Path }
func (s *FileSource) Priority() int { return 20 }

func (s *FileSource) Load(k *koanf.Koanf) error {
	if s.Path == "" {
		return nil
	}

	if _, err := os.Stat(s.Path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error checking config file %s: %w", s.Path, err)
	}

	if err := k.Load(file.Provider(s.Path), yaml.Parser()); err != nil {
		return fmt.Errorf("error loading config file %s: %w", s.Path, err)
	}
	return nil
}

// EnvSource loads configuration from environment variables. Underscores map
// to dots:
//
//	WEBPRINT_LOG_LEVEL -> log.level
//	WEBPRINT_DETECT_WORKERS -> detect.workers
//	WEBPRINT_CATALOG_OVERRIDES_1221 -> catalog.overrides.1221
type EnvSource struct {
	Prefix string // default: EnvPrefix
}

func (s *EnvSource) Name() string  { return "env" }
func (s *EnvSource) Priority() int { return 30 }

func (s *EnvSource) Load(k *koanf.Koanf) error {
	prefix := s.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}

	if err := k.Load(env.Provider(prefix, ".", func(key string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(key, prefix)), "_", ".")
	}), nil); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}
	return nil
}

// FlagSource loads configuration from command-line flags. Flags left at
// their default only fill keys no other source has set.
type FlagSource struct {
	Flags *pflag.FlagSet
	Debug bool // forces log.level=debug
}

func (s *FlagSource) Name() string  { return "flags" }
func (s *FlagSource) Priority() int { return 40 }

func (s *FlagSource) Load(k *koanf.Koanf) error {
	if s.Flags != nil {
		if err := k.Load(posflag.Provider(s.Flags, ".", k), nil); err != nil {
			return fmt.Errorf("error loading command-line flags: %w", err)
		}
	}
	if s.Debug {
		_ = k.Set("log.level", "debug")
	}
	return nil
}

// DefaultSources returns the standard configuration sources.
func DefaultSources(configPath string, flags *pflag.FlagSet, debug bool) []ConfigSource {
	return []ConfigSource{
		&DefaultSource{},
		&FileSource{Path: configPath},
		&EnvSource{Prefix: EnvPrefix},
		&FlagSource{Flags: flags, Debug: debug},
	}
}
