// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

var validate = validator.New()

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a Manager with an empty koanf instance.
func NewManager() *Manager {
	return &Manager{koanfInstance: koanf.New(".")}
}

// DefaultConfig returns a new Config struct populated with hardcoded default values.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Catalog: CatalogConfig{
			Timeout: 30 * time.Second,
		},
		Detect: DetectConfig{
			Workers: 1,
		},
		Output: OutputConfig{
			Format: "table",
			Color:  true,
		},
	}
}

// Load loads configuration from the default sources: defaults, the config
// file, WEBPRINT_* environment variables, then flags.
func (m *Manager) Load(flags *pflag.FlagSet, configPath string) error {
	debug := false
	if flags != nil {
		if f := flags.Lookup("debug"); f != nil && f.Value.String() == "true" {
			debug = true
		}
	}
	return m.LoadSources(DefaultSources(configPath, flags, debug)...)
}

// LoadSources loads the given sources in priority order, unmarshals the
// merged result and validates it.
func (m *Manager) LoadSources(sources ...ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := append([]ConfigSource(nil), sources...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})
	for _, src := range ordered {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	postProcessConfig(&newCfg)

	if err := Validate(newCfg); err != nil {
		return err
	}
	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.currentConfig
	if cfg.Catalog.Overrides != nil {
		overrides := make(map[string]string, len(cfg.Catalog.Overrides))
		for k, v := range cfg.Catalog.Overrides {
			overrides[k] = v
		}
		cfg.Catalog.Overrides = overrides
	}
	return cfg
}

// Koanf exposes the merged key space, mainly for diagnostics.
func (m *Manager) Koanf() *koanf.Koanf {
	return m.koanfInstance
}

// Validate checks cfg against its validation tags.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// postProcessConfig normalizes values after unmarshaling.
func postProcessConfig(cfg *Config) {
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	if cfg.Catalog.Dir != "" && cfg.Catalog.Categories == "" {
		cfg.Catalog.Categories = cfg.Catalog.Dir + "/categories.json"
	}
}

// DefaultConfigAsMap converts the DefaultConfig struct to a map for koanf's
// confmap.Provider so that every key is known.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"catalog.dir":        def.Catalog.Dir,
		"catalog.categories": def.Catalog.Categories,
		"catalog.cache":      def.Catalog.Cache,
		"catalog.timeout":    def.Catalog.Timeout,

		"detect.workers":   def.Detect.Workers,
		"detect.telemetry": def.Detect.Telemetry,

		"output.format": def.Output.Format,
		"output.color":  def.Output.Color,
	}
}

// BindFlags defines command-line flags corresponding to configuration settings.
// Flag names match koanf keys so posflag can map them directly.
func BindFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig()

	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log.level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("catalog.dir", "", "Directory of technology fragments (default: embedded catalog)")
	flags.String("catalog.categories", "", "Category taxonomy file (default: <catalog.dir>/categories.json)")
	flags.String("catalog.cache", "", "Synced catalog cache directory")
	flags.Duration("catalog.timeout", defaults.Catalog.Timeout, "Per-source catalog load timeout")
	flags.Int("detect.workers", defaults.Detect.Workers, "Technologies evaluated in parallel")
	flags.String("detect.telemetry", "", "Append detection events to this JSONL file")
	flags.StringP("output.format", "o", defaults.Output.Format, "Output format (table, json)")
	flags.Bool("output.color", defaults.Output.Color, "Colorize table output")
}
