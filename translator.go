package tlcache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Translator is the batch translation engine. It serves cached records where
// it can, sends the remaining items to the provider in one call, and persists
// the translations that pass validation.
type Translator struct {
	provider         AIProvider
	cache            TranslationCache
	targetLangs      []string
	validator        Validator
	retry            RetryConfig
	translateTimeout time.Duration
	logger           *slog.Logger
	metrics          *Metrics
}

// AIProvider is the interface for AI translation backends.
type AIProvider interface {
	Translate(ctx context.Context, req TranslateRequest) ([]ProviderRecord, error)
}

// TranslateRequest is one provider call covering every cache miss of a request.
type TranslateRequest struct {
	Items       []ProviderItem
	TargetLangs []string
}

// ProviderItem is an item sent to the provider. ID is assigned by the
// Translator and must be echoed back in the matching ProviderRecord.
type ProviderItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Lang    string `json:"lang"`
}

// ProviderRecord is the provider's answer for one item.
type ProviderRecord struct {
	ID           string
	Translations Record
}

// TranslationCache is the interface for translation caching.
type TranslationCache interface {
	// BatchGet returns the records present for keys, indexed by source text.
	// All keys must share one Scope.
	BatchGet(ctx context.Context, keys []CacheKey) (map[string]Record, error)

	// BatchPut upserts entries; a present entry is fully overwritten.
	BatchPut(ctx context.Context, entries []Entry) error
}

// TranslatorOption is a functional option for configuring the Translator.
type TranslatorOption func(*Translator)

// WithCache sets the translation cache.
func WithCache(cache TranslationCache) TranslatorOption {
	return func(t *Translator) {
		t.cache = cache
	}
}

// WithTargetLangs sets the default target language set.
func WithTargetLangs(langs ...string) TranslatorOption {
	return func(t *Translator) {
		t.targetLangs = TargetList(langs)
	}
}

// WithValidator sets the policy deciding which translations are cached.
func WithValidator(v Validator) TranslatorOption {
	return func(t *Translator) {
		t.validator = v
	}
}

// WithCacheRetry sets the retry budget for cache operations.
func WithCacheRetry(cfg RetryConfig) TranslatorOption {
	return func(t *Translator) {
		t.retry = cfg
	}
}

// WithTranslateTimeout bounds each provider call. Zero disables the bound.
func WithTranslateTimeout(d time.Duration) TranslatorOption {
	return func(t *Translator) {
		t.translateTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) TranslatorOption {
	return func(t *Translator) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) TranslatorOption {
	return func(t *Translator) {
		t.metrics = m
	}
}

// NewTranslator creates a new Translator backed by the given provider.
func NewTranslator(provider AIProvider, opts ...TranslatorOption) *Translator {
	t := &Translator{
		provider:         provider,
		targetLangs:      TargetList(DefaultTargetLangs),
		validator:        DefaultValidator(),
		retry:            DefaultRetryConfig(),
		translateTimeout: 2 * time.Minute,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.cache != nil {
		retry := t.retry
		userOnRetry := retry.OnRetry
		retry.OnRetry = func(attempt int, err error, delay time.Duration) {
			t.logger.Info("retrying cache operation",
				slog.Int("attempt", attempt), slog.Duration("delay", delay), slog.String("error", err.Error()))
			t.metrics.retry("cache")
			if userOnRetry != nil {
				userOnRetry(attempt, err, delay)
			}
		}
		t.cache = NewRetryingCache(t.cache, retry)
	}

	return t
}

// missKey identifies a unique miss within one request.
type missKey struct {
	lang    string
	content string
}

// Translate runs a request through partition, translate, validate, persist
// and merge, in that order. Cache write failures are logged and do not fail
// the request; provider failures do.
func (t *Translator) Translate(ctx context.Context, req Request) (*BatchResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyRequest
	}

	targets := t.targetLangs
	if len(req.TargetLangs) > 0 {
		targets = TargetList(req.TargetLangs)
	}
	targetSet := CanonicalTargets(targets)
	logger := t.logger.With(slog.String("request_id", uuid.NewString()))

	// Partition
	groups := groupByScope(req.Items, targetSet)
	hits := make(map[CacheKey]Record)
	if !req.Force && t.cache != nil {
		var err error
		hits, err = lookupScopes(ctx, t.cache, groups)
		if err != nil {
			return nil, err
		}
	}

	var misses []missKey
	firstIndex := make(map[missKey]int)
	missItems := 0
	for i, item := range req.Items {
		if _, ok := hits[itemKey(item, targetSet)]; ok {
			continue
		}
		missItems++
		mk := missKey{lang: item.Lang, content: item.Content}
		if _, seen := firstIndex[mk]; seen {
			continue
		}
		firstIndex[mk] = i
		misses = append(misses, mk)
	}
	t.metrics.lookups(len(req.Items)-missItems, missItems)

	// Translate misses
	fresh := make(map[missKey]Record, len(misses))
	if len(misses) > 0 {
		records, err := t.callProvider(ctx, misses, targets)
		if err != nil {
			return nil, err
		}
		for id, rec := range records {
			idx, err := strconv.Atoi(id)
			if err != nil || idx < 0 || idx >= len(misses) {
				logger.Debug("ignoring unknown provider record id", slog.String("id", id))
				continue
			}
			fresh[misses[idx]] = rec
		}
	}

	// Validate
	rejected := make(map[missKey]string)
	var entries []Entry
	now := time.Now().UTC()
	for _, mk := range misses {
		rec, ok := fresh[mk]
		if !ok {
			logger.Debug("no translation returned for item", slog.Int("index", firstIndex[mk]))
			continue
		}
		item := Item{Content: mk.content, Lang: mk.lang}
		if err := t.validator.Validate(item, rec, targets); err != nil {
			reason := err.Error()
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Index = firstIndex[mk]
				reason = verr.Reason
			}
			rejected[mk] = reason
			logger.Debug("translation rejected", slog.Int("index", firstIndex[mk]), slog.String("reason", reason))
			continue
		}
		entries = append(entries, Entry{
			Key:       itemKey(item, targetSet),
			Record:    rec,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	t.metrics.rejected(len(rejected))

	// Persist
	persisted := 0
	if len(entries) > 0 && t.cache != nil {
		if err := t.cache.BatchPut(ctx, entries); err != nil {
			logger.Warn("failed to persist translations",
				slog.Int("count", len(entries)), slog.String("error", err.Error()))
			t.metrics.persistFailed()
		} else {
			persisted = len(entries)
			t.metrics.persisted(persisted)
		}
	}

	// Merge
	result := &BatchResult{
		Results:         make([]Result, len(req.Items)),
		TargetLangs:     targets,
		TranslatedCount: len(misses),
		PersistedCount:  persisted,
		RejectedCount:   len(rejected),
	}
	for i, item := range req.Items {
		r := Result{Key: item.Content, SourceLang: item.Lang}
		if rec, ok := hits[itemKey(item, targetSet)]; ok {
			r.Translations = rec.Clone()
			r.Cached = true
			result.CachedCount++
		} else {
			mk := missKey{lang: item.Lang, content: item.Content}
			r.Translations = fresh[mk].Clone()
			r.Rejected = rejected[mk]
		}
		if r.Translations == nil {
			r.Translations = Record{}
		}
		result.Results[i] = r
	}

	return result, nil
}

// callProvider sends all misses in one call and indexes the answer by id.
func (t *Translator) callProvider(ctx context.Context, misses []missKey, targets []string) (map[string]Record, error) {
	if t.provider == nil {
		return nil, &ExternalTranslateError{Message: "no provider configured"}
	}

	items := make([]ProviderItem, len(misses))
	for i, mk := range misses {
		items[i] = ProviderItem{ID: strconv.Itoa(i), Content: mk.content, Lang: mk.lang}
	}

	callCtx := ctx
	if t.translateTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.translateTimeout)
		defer cancel()
	}

	start := time.Now()
	records, err := t.provider.Translate(callCtx, TranslateRequest{Items: items, TargetLangs: targets})
	t.metrics.providerCall(time.Since(start), err)
	if err != nil {
		var providerErr *ExternalTranslateError
		if errors.As(err, &providerErr) {
			return nil, err
		}
		return nil, &ExternalTranslateError{Message: "translation call failed", Cause: err}
	}
	if len(records) == 0 {
		return nil, &ExternalTranslateError{Message: "no records returned", Cause: ErrEmptyResponse}
	}

	wanted := make(map[string]bool, len(targets))
	for _, lang := range targets {
		wanted[lang] = true
	}

	byID := make(map[string]Record, len(records))
	for _, rec := range records {
		if _, dup := byID[rec.ID]; dup {
			continue
		}
		filtered := make(Record, len(targets))
		for lang, text := range rec.Translations {
			if wanted[lang] {
				filtered[lang] = text
			}
		}
		byID[rec.ID] = filtered
	}
	return byID, nil
}

// TargetLangs returns the default target language set.
func (t *Translator) TargetLangs() []string {
	return t.targetLangs
}
