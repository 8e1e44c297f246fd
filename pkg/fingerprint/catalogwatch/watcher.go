// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package catalogwatch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/vulntor/webprint/pkg/fingerprint"
)

// DefaultDebounce is the delay between the last file event and the reload.
const DefaultDebounce = 100 * time.Millisecond

// ReloadFunc rebuilds the catalog from its sources.
type ReloadFunc func(ctx context.Context) (*fingerprint.Catalog, error)

// Watcher watches catalog directories and swaps a rebuilt catalog into a
// Holder after changes settle. A failed rebuild keeps the previous catalog.
type Watcher struct {
	holder  *Holder
	reload  ReloadFunc
	dirs    []string
	watcher *fsnotify.Watcher

	debounceDelay time.Duration
	logger        zerolog.Logger

	// mu protects the debounce timer and the reload context
	mu            sync.Mutex
	debounceTimer *time.Timer
	ctx           context.Context

	// OnReload, if set, is called after every reload attempt.
	OnReload func(*fingerprint.Catalog, error)
}

// NewWatcher creates a watcher over dirs. Duplicate and empty entries are
// dropped.
func NewWatcher(holder *Holder, reload ReloadFunc, dirs []string, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(dirs))
	var unique []string
	for _, d := range dirs {
		if d == "" {
			continue
		}
		d = filepath.Clean(d)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		unique = append(unique, d)
	}

	return &Watcher{
		holder:        holder,
		reload:        reload,
		dirs:          unique,
		watcher:       fw,
		debounceDelay: DefaultDebounce,
		logger:        logger.With().Str("component", "catalog.watcher").Logger(),
		ctx:           context.Background(),
	}, nil
}

// SetDebounce overrides the debounce delay.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	w.debounceDelay = d
	w.mu.Unlock()
}

// Start watches until ctx is canceled. It should be run in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Error().Err(err).Str("dir", dir).Msg("Failed to watch catalog directory")
			return err
		}
	}

	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.logger.Info().
		Strs("dirs", w.dirs).
		Dur("debounce", w.debounceDelay).
		Msg("Started watching catalog")

	defer func() {
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Error closing watcher")
		}
		w.logger.Info().Msg("Stopped watching catalog")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !isCatalogFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().
				Str("op", event.Op.String()).
				Str("file", event.Name).
				Msg("Detected catalog change")
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

// scheduleReload resets the debounce timer so a burst of writes triggers a
// single rebuild.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	ctx := w.ctx
	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		w.Reload(ctx)
	})
}

// Reload rebuilds the catalog now and swaps it in on success.
func (w *Watcher) Reload(ctx context.Context) {
	catalog, err := w.reload(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Catalog reload failed, keeping previous catalog")
	} else {
		w.holder.Swap(catalog)
		w.logger.Info().Int("technologies", catalog.Len()).Msg("Catalog reloaded")
	}
	if w.OnReload != nil {
		w.OnReload(catalog, err)
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func isCatalogFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
