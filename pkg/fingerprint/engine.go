package fingerprint

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// RawDetection is an unresolved match of one technology against one page.
type RawDetection struct {
	Technology string     `json:"technology"`
	Signal     SignalType `json:"signal"`
	Confidence int        `json:"confidence"`
	Version    string     `json:"version,omitempty"`
}

// Engine evaluates evidence against a catalog. It holds no per-scan state and
// may be shared across concurrent scans.
type Engine struct {
	workers int
	logger  zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWorkers evaluates technologies on up to n goroutines.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{workers: 1, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine()

// Detect evaluates evidence against every technology in the catalog using a
// sequential engine.
func Detect(catalog *Catalog, evidence Evidence) []RawDetection {
	return defaultEngine.Detect(catalog, evidence)
}

// Detect returns at most one RawDetection per matching technology, in catalog
// order. Neither the catalog nor the evidence is modified.
func (e *Engine) Detect(catalog *Catalog, evidence Evidence) []RawDetection {
	if catalog.Len() == 0 {
		return nil
	}
	ev := evidence.Normalized()
	names := catalog.names

	results := make([]*RawDetection, len(names))
	if e.workers <= 1 {
		for i, name := range names {
			results[i] = evaluate(catalog.technologies[name], &ev)
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, e.workers)
		for i, name := range names {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, tech *Technology) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = evaluate(tech, &ev)
			}(i, catalog.technologies[name])
		}
		wg.Wait()
	}

	var detections []RawDetection
	for _, r := range results {
		if r != nil {
			detections = append(detections, *r)
		}
	}
	e.logger.Debug().
		Str("url", ev.URL).
		Int("technologies", len(names)).
		Int("detections", len(detections)).
		Msg("Evidence evaluated")
	return detections
}

// evaluation accumulates the strongest match for one technology.
type evaluation struct {
	best    *RawDetection
	version string // first version seen from any matching rule
}

func (ev *evaluation) add(name string, signal SignalType, rule *Rule, version string) {
	if ev.version == "" {
		ev.version = version
	}
	if ev.best != nil && rule.Confidence <= ev.best.Confidence {
		return
	}
	ev.best = &RawDetection{
		Technology: name,
		Signal:     signal,
		Confidence: rule.Confidence,
		Version:    version,
	}
}

func evaluate(tech *Technology, ev *Evidence) *RawDetection {
	var acc evaluation
	evaluateRules(tech.Name, tech, ev, "", &acc)
	for _, variant := range tech.Versions {
		evaluateRules(tech.Name, variant, ev, variant.Name, &acc)
	}
	if acc.best == nil {
		return nil
	}
	if acc.best.Version == "" {
		acc.best.Version = acc.version
	}
	return acc.best
}

// evaluateRules runs every rule of tech. Channels are evaluated in a fixed
// order so that ties on confidence keep the earliest signal.
func evaluateRules(name string, tech *Technology, ev *Evidence, label string, acc *evaluation) {
	add := func(signal SignalType, rule *Rule, version string) {
		if version == "" {
			version = label
		}
		acc.add(name, signal, rule, version)
	}

	matchKeyed(tech.Headers, ev.Headers, SignalHeaders, add)
	matchKeyed(tech.Meta, ev.Meta, SignalMeta, add)
	matchEach(tech.ScriptSrc, ev.Scripts, SignalScriptSrc, add)
	matchEach(tech.Script, ev.Scripts, SignalScript, add)
	if ev.HTML != "" {
		matchEach(tech.HTML, []string{ev.HTML}, SignalHTML, add)
	}
	if ev.URL != "" {
		matchEach(tech.URL, []string{ev.URL}, SignalURL, add)
	}
	matchEach(tech.CSS, ev.CSS, SignalCSS, add)

	if len(tech.JS) > 0 && len(ev.JS) > 0 {
		props := sortedKeys(ev.JS)
		matchEach(tech.JS, props, SignalJS, add)
	}
	for _, global := range tech.JSGlobals {
		value, ok := ev.JS[global.Key]
		if !ok {
			continue
		}
		matchEach(global.Rules, []string{value}, SignalJS, add)
	}
}

// matchEach tests every rule against each value; a rule counts once.
func matchEach(rules []*Rule, values []string, signal SignalType, add func(SignalType, *Rule, string)) {
	if len(values) == 0 {
		return
	}
	for _, rule := range rules {
		for _, v := range values {
			if ok, version := rule.Match(v); ok {
				add(signal, rule, version)
				break
			}
		}
	}
}

// matchKeyed looks up each rule key in the lower-cased evidence map. Names
// missing from the evidence contribute nothing.
func matchKeyed(keyed []KeyedRules, values map[string][]string, signal SignalType, add func(SignalType, *Rule, string)) {
	if len(values) == 0 {
		return
	}
	for _, k := range keyed {
		vs, ok := values[strings.ToLower(k.Key)]
		if !ok {
			continue
		}
		if len(vs) == 0 {
			vs = []string{""}
		}
		matchEach(k.Rules, vs, signal, add)
	}
}
