// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package report assembles a scan report for a domain: the technologies
// detected on its page plus optional audit scores from an external auditor.
package report

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vulntor/webprint/pkg/fingerprint"
)

// Report is the outcome of scanning one domain.
type Report struct {
	ID            string                           `json:"id"`
	Domain        string                           `json:"domain"`
	URL           string                           `json:"url"`
	ScannedAt     time.Time                        `json:"scannedAt"`
	Performance   *float64                         `json:"performance,omitempty"`
	SEO           *float64                         `json:"seo,omitempty"`
	Accessibility *float64                         `json:"accessibility,omitempty"`
	Screenshot    string                           `json:"screenshot,omitempty"`
	Tech          []fingerprint.ResolvedTechnology `json:"tech"`
}

// Audit holds category scores as fractions in [0, 1], the way audit tools
// report them, and an optional screenshot reference.
type Audit struct {
	Performance   *float64
	SEO           *float64
	Accessibility *float64
	Screenshot    string
}

// Auditor runs a page audit against a URL.
type Auditor interface {
	Audit(ctx context.Context, url string) (Audit, error)
}

// CatalogProvider supplies the catalog in service. catalogwatch.Holder
// satisfies it.
type CatalogProvider interface {
	Catalog() *fingerprint.Catalog
}

// StaticCatalog serves a fixed catalog.
type StaticCatalog struct {
	C *fingerprint.Catalog
}

// Catalog returns the fixed catalog.
func (s StaticCatalog) Catalog() *fingerprint.Catalog { return s.C }

// Builder builds reports. Engine and Resolver default to sequential
// detection and the built-in legacy names; Auditor and Telemetry are optional.
type Builder struct {
	Catalogs  CatalogProvider
	Engine    *fingerprint.Engine
	Resolver  *fingerprint.Resolver
	Auditor   Auditor
	Telemetry *fingerprint.TelemetryWriter
	Logger    zerolog.Logger

	now func() time.Time
}

// NewBuilder creates a Builder over catalogs.
func NewBuilder(catalogs CatalogProvider, logger zerolog.Logger) *Builder {
	return &Builder{
		Catalogs: catalogs,
		Engine:   fingerprint.NewEngine(fingerprint.WithLogger(logger)),
		Resolver: fingerprint.NewResolver(nil),
		Logger:   logger.With().Str("component", "report").Logger(),
		now:      time.Now,
	}
}

// Build scans domain using the given evidence. Detection never fails the
// report; an auditor or telemetry failure is logged and leaves the related
// fields empty.
func (b *Builder) Build(ctx context.Context, domain string, evidence fingerprint.Evidence) *Report {
	now := time.Now
	if b.now != nil {
		now = b.now
	}

	rep := &Report{
		ID:        uuid.NewString(),
		Domain:    domain,
		URL:       TargetURL(domain),
		ScannedAt: now().UTC(),
	}
	if evidence.URL == "" {
		evidence.URL = rep.URL
	}

	engine := b.Engine
	if engine == nil {
		engine = fingerprint.NewEngine()
	}
	resolver := b.Resolver
	if resolver == nil {
		resolver = fingerprint.NewResolver(nil)
	}

	var catalog *fingerprint.Catalog
	if b.Catalogs != nil {
		catalog = b.Catalogs.Catalog()
	}
	rep.Tech = resolver.Resolve(engine.Detect(catalog, evidence), catalog)

	if b.Auditor != nil {
		audit, err := b.Auditor.Audit(ctx, rep.URL)
		if err != nil {
			b.Logger.Warn().Err(err).Str("domain", domain).Msg("Audit failed, reporting detections only")
		} else {
			rep.Performance = percent(audit.Performance)
			rep.SEO = percent(audit.SEO)
			rep.Accessibility = percent(audit.Accessibility)
			rep.Screenshot = audit.Screenshot
		}
	}

	if b.Telemetry != nil {
		if err := b.Telemetry.WriteScan(rep.URL, rep.Tech); err != nil {
			b.Logger.Warn().Err(err).Msg("Failed to write telemetry")
		}
	}

	b.Logger.Info().
		Str("domain", domain).
		Int("technologies", len(rep.Tech)).
		Msg("Report built")
	return rep
}

// TargetURL returns the URL scanned for domain. A domain that already carries
// a scheme is used as is.
func TargetURL(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

func percent(score *float64) *float64 {
	if score == nil {
		return nil
	}
	// rounded to two decimal places
	v := math.Round(*score*10000) / 100
	return &v
}
