// =============================================================================
// AIMsi to CAPSS Converter - Brand Extraction Module
// =============================================================================
//
// RESOLUTION ORDER:
//   1. Cache:     normalized description already resolved
//   2. Remote:    optional language model call, answer cleaned and bounded
//   3. Pattern:   first known brand found as a whole word
//   4. Heuristic: first plausible word of the description
//
// Every result, UNKNOWN included, is written to the cache.
//
// =============================================================================

// Package brand resolves a manufacturer name from a free-text item
// description. Resolution is tiered: the persistent cache, then an optional
// remote inference call, then a static brand list and a word heuristic.
package brand

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Source records which tier produced a brand.
type Source string

const (
	SourceCache     Source = "cache"
	SourceRemote    Source = "remote"
	SourcePattern   Source = "pattern"
	SourceHeuristic Source = "heuristic"
	SourceUnknown   Source = "unknown"
)

// MaxRemoteBrandLen bounds accepted remote answers; longer answers are
// treated as chatter rather than a brand.
const MaxRemoteBrandLen = 50

// Resolver is the remote inference tier. Implementations return the raw
// model answer; cleaning and acceptance happen in the Extractor.
type Resolver interface {
	InferBrand(ctx context.Context, description string) (string, error)
}

// Resolution is a resolved brand and the tier that produced it.
type Resolution struct {
	Brand  string
	Source Source
}

// =============================================================================
// EXTRACTOR
// =============================================================================

// Extractor resolves brands and records every new resolution in its Store.
// One Extractor serves a single run at a time; concurrent runs need a
// concurrency-safe Store such as PebbleStore.
type Extractor struct {
	store    Store
	remote   Resolver
	patterns *PatternMatcher
	logger   *slog.Logger
}

// NewExtractor wires the tiers. A nil store keeps the cache in memory and a
// nil remote disables remote inference.
func NewExtractor(store Store, remote Resolver, logger *slog.Logger) *Extractor {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		store:    store,
		remote:   remote,
		patterns: defaultMatcher,
		logger:   logger,
	}
}

// WithPatterns replaces the brand list, mainly for tests.
func (e *Extractor) WithPatterns(m *PatternMatcher) *Extractor {
	e.patterns = m
	return e
}

// CacheKey normalizes a description for cache lookups.
func CacheKey(description string) string {
	return strings.ToUpper(strings.TrimSpace(description))
}

// Extract returns only the brand.
func (e *Extractor) Extract(ctx context.Context, description string) string {
	return e.Resolve(ctx, description).Brand
}

// Resolve never fails: remote errors fall through to the pattern tier and a
// failed cache read or write is logged.
func (e *Extractor) Resolve(ctx context.Context, description string) Resolution {
	if description == "" {
		return Resolution{Brand: Unknown, Source: SourceUnknown}
	}

	key := CacheKey(description)
	cached, ok, err := e.store.Get(key)
	if err != nil {
		e.logger.Warn("brand.cache.read_failed", "key", key, "err", err)
	}
	if ok {
		return Resolution{Brand: cached, Source: SourceCache}
	}

	res := Resolution{}
	if e.remote != nil {
		if b, ok := e.inferRemote(ctx, description); ok {
			res = Resolution{Brand: b, Source: SourceRemote}
		}
	}
	if res.Brand == "" {
		res.Brand, res.Source = e.patterns.Resolve(description)
	}

	if err := e.store.Put(key, res.Brand); err != nil {
		e.logger.Warn("brand.cache.write_failed", "err", err)
	}

	e.logger.Debug("brand.resolved",
		"description", description,
		"brand", res.Brand,
		"source", string(res.Source),
	)
	return res
}

func (e *Extractor) inferRemote(ctx context.Context, description string) (string, bool) {
	answer, err := e.remote.InferBrand(ctx, description)
	if err != nil {
		e.logger.Warn("brand.remote.error", "err", err)
		return "", false
	}
	b, ok := CleanRemoteAnswer(answer)
	if !ok {
		e.logger.Debug("brand.remote.discarded", "answer", answer)
	}
	return b, ok
}

// =============================================================================
// REMOTE ANSWER CLEANING
// =============================================================================

// CleanRemoteAnswer upper-cases the answer and strips quotes. It rejects
// empty answers, the UNKNOWN sentinel and anything MaxRemoteBrandLen runes
// or longer.
func CleanRemoteAnswer(answer string) (string, bool) {
	b := strings.ToUpper(strings.TrimSpace(answer))
	b = strings.NewReplacer(`"`, "", "'", "").Replace(b)
	b = strings.TrimSpace(b)

	if b == "" || b == Unknown || utf8.RuneCountInString(b) >= MaxRemoteBrandLen {
		return "", false
	}
	return b, true
}
