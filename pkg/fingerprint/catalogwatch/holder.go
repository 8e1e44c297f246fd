// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package catalogwatch keeps a live fingerprint catalog and rebuilds it when
// its source files change on disk.
package catalogwatch

import (
	"sync/atomic"

	"github.com/vulntor/webprint/pkg/fingerprint"
)

// Holder publishes the current catalog. Readers always see a fully built
// catalog; a swap never exposes a partially loaded one.
type Holder struct {
	current atomic.Pointer[fingerprint.Catalog]
}

// NewHolder creates a Holder serving catalog.
func NewHolder(catalog *fingerprint.Catalog) *Holder {
	h := &Holder{}
	h.current.Store(catalog)
	return h
}

// Catalog returns the catalog currently in service.
func (h *Holder) Catalog() *fingerprint.Catalog {
	return h.current.Load()
}

// Swap installs catalog and returns the one it replaced. A nil catalog is
// ignored.
func (h *Holder) Swap(catalog *fingerprint.Catalog) *fingerprint.Catalog {
	if catalog == nil {
		return h.current.Load()
	}
	return h.current.Swap(catalog)
}
