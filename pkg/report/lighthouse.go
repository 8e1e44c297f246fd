// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// lighthouseResult is the subset of a Lighthouse JSON report read here.
type lighthouseResult struct {
	Categories map[string]struct {
		Score *float64 `json:"score"`
	} `json:"categories"`
	Audits map[string]struct {
		Details struct {
			Data string `json:"data"`
		} `json:"details"`
	} `json:"audits"`
}

// ParseLighthouse extracts performance, SEO and accessibility scores and the
// final screenshot from a Lighthouse JSON report.
func ParseLighthouse(data []byte) (Audit, error) {
	var res lighthouseResult
	if err := json.Unmarshal(data, &res); err != nil {
		return Audit{}, fmt.Errorf("decode lighthouse report: %w", err)
	}
	if len(res.Categories) == 0 {
		return Audit{}, errors.New("lighthouse report has no categories")
	}
	return Audit{
		Performance:   res.Categories["performance"].Score,
		SEO:           res.Categories["seo"].Score,
		Accessibility: res.Categories["accessibility"].Score,
		Screenshot:    res.Audits["final-screenshot"].Details.Data,
	}, nil
}

// LighthouseFile is an Auditor backed by a Lighthouse report saved on disk.
// The URL passed to Audit is not checked against the report.
type LighthouseFile struct {
	Path string
}

func (l LighthouseFile) Audit(_ context.Context, _ string) (Audit, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return Audit{}, fmt.Errorf("read lighthouse report: %w", err)
	}
	return ParseLighthouse(data)
}
