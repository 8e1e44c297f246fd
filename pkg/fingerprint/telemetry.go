package fingerprint

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// DetectionEvent is one telemetry record of a detection pass.
type DetectionEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Target     string    `json:"target"`
	Technology string    `json:"technology,omitempty"`
	Version    string    `json:"version,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	Confidence int       `json:"confidence"`
	Legacy     bool      `json:"legacy,omitempty"`
	MatchType  string    `json:"match_type"` // "success" or "no_match"
}

// TelemetryWriter writes detection events to a JSONL file in a thread-safe manner.
type TelemetryWriter struct {
	filePath string
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	enabled  bool
	now      func() time.Time
}

// NewTelemetryWriter creates a new telemetry writer that appends to the specified file.
// If filePath is empty, the writer is disabled.
func NewTelemetryWriter(filePath string) (*TelemetryWriter, error) {
	if filePath == "" {
		return &TelemetryWriter{enabled: false}, nil
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry file: %w", err)
	}

	return &TelemetryWriter{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
		enabled:  true,
		now:      time.Now,
	}, nil
}

// Write writes a detection event to the telemetry file.
func (w *TelemetryWriter) Write(event DetectionEvent) error {
	if !w.enabled {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("telemetry writer is closed")
	}
	if err := w.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to write telemetry event: %w", err)
	}
	return nil
}

// WriteScan records the outcome of one scan: an event per resolved technology,
// or a single no_match event when nothing was detected.
func (w *TelemetryWriter) WriteScan(target string, resolved []ResolvedTechnology) error {
	if !w.enabled {
		return nil
	}
	ts := w.now()
	if len(resolved) == 0 {
		return w.Write(DetectionEvent{Timestamp: ts, Target: target, MatchType: "no_match"})
	}
	for _, tech := range resolved {
		event := DetectionEvent{
			Timestamp:  ts,
			Target:     target,
			Technology: tech.Name,
			Version:    tech.Version,
			Categories: tech.Categories,
			Confidence: tech.Confidence,
			Legacy:     tech.Legacy,
			MatchType:  "success",
		}
		if err := w.Write(event); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the telemetry file.
func (w *TelemetryWriter) Close() error {
	if !w.enabled || w.file == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close telemetry file: %w", err)
	}

	w.file = nil
	return nil
}

// IsEnabled returns true if telemetry is enabled.
func (w *TelemetryWriter) IsEnabled() bool {
	return w.enabled
}
