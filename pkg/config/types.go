// pkg/config/types.go
package config

import "time"

// Config is the root configuration structure for webprint.
type Config struct {
	Log     LogConfig     `description:"Logging configuration" koanf:"log"`
	Catalog CatalogConfig `description:"Fingerprint catalog configuration" koanf:"catalog"`
	Detect  DetectConfig  `description:"Detection configuration" koanf:"detect"`
	Output  OutputConfig  `description:"Output configuration" koanf:"output"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level" koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"` // Log level (e.g., "debug", "info", "warn", "error")
	Format string `description:"Log format: json | text" koanf:"format" validate:"oneof=json text"`
	File   string `description:"Log file path" koanf:"file"` // Log file path (optional)
}

// CatalogConfig selects where technology definitions come from.
// Precedence at runtime: synced cache, then Dir, then the embedded catalog.
type CatalogConfig struct {
	// Dir holds technology fragments (*.json, *.yaml). Empty uses the embedded catalog.
	Dir string `description:"Directory of technology fragments" koanf:"dir"`
	// Categories is the taxonomy file used with Dir. Defaults to <Dir>/categories.json.
	Categories string `description:"Category taxonomy file" koanf:"categories"`
	// Cache is the directory holding a synced catalog bundle.
	Cache string `description:"Synced catalog cache directory" koanf:"cache"`

	Timeout time.Duration `description:"Per-source load timeout" koanf:"timeout" validate:"gt=0"`

	// Overrides maps numeric technology identifiers to display names.
	Overrides map[string]string `description:"Display names for numeric identifiers" koanf:"overrides"`
}

// DetectConfig tunes the detection engine.
type DetectConfig struct {
	Workers   int    `description:"Technologies evaluated in parallel" koanf:"workers" validate:"min=1,max=256"`
	Telemetry string `description:"JSONL file receiving detection events" koanf:"telemetry"`
}

// OutputConfig controls CLI rendering.
type OutputConfig struct {
	Format string `description:"Output format: table | json" koanf:"format" validate:"oneof=table json"`
	Color  bool   `description:"Colorize table output" koanf:"color"`
}
