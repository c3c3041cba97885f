// Package store implements the translation cache on top of a relational
// backend Driver.
package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ZaguanLabs/tlcache"
	"github.com/ZaguanLabs/tlcache/codec"
)

// TableName is the cache table.
const TableName = "translation_cache"

// maxLookupTexts bounds the bind parameters of one lookup query.
const maxLookupTexts = 500

// Store is a tlcache.TranslationCache backed by a Driver.
type Store struct {
	driver Driver
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for corrupt-row reports.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store over driver.
func New(driver Driver, opts ...Option) *Store {
	s := &Store{
		driver: driver,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver returns the underlying backend driver.
func (s *Store) Driver() Driver {
	return s.driver
}

// Close closes the backend driver.
func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate creates the cache table and its indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.driver.Schema() {
		if err := s.driver.Execute(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// BatchGet returns the records present for keys, indexed by source text.
// All keys must share one scope. An empty key list issues no query.
// Rows whose blob cannot be decoded are logged and reported as absent.
func (s *Store) BatchGet(ctx context.Context, keys []tlcache.CacheKey) (map[string]tlcache.Record, error) {
	found := make(map[string]tlcache.Record)
	if len(keys) == 0 {
		return found, nil
	}

	scope := keys[0].Scope()
	texts := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k.Scope() != scope {
			return nil, tlcache.ErrMixedScope
		}
		if !seen[k.SourceText] {
			seen[k.SourceText] = true
			texts = append(texts, k.SourceText)
		}
	}

	for start := 0; start < len(texts); start += maxLookupTexts {
		end := min(start+maxLookupTexts, len(texts))
		if err := s.lookup(ctx, scope, texts[start:end], found); err != nil {
			return nil, err
		}
	}

	return found, nil
}

func (s *Store) lookup(ctx context.Context, scope tlcache.Scope, texts []string, found map[string]tlcache.Record) error {
	args := make([]any, 0, len(texts)+2)
	args = append(args, scope.SourceLang, scope.TargetSet)
	marks := make([]string, len(texts))
	for i, text := range texts {
		marks[i] = s.driver.Placeholder(i + 3)
		args = append(args, text)
	}

	query := `SELECT source_text, record FROM ` + TableName + `
		WHERE source_lang = ` + s.driver.Placeholder(1) + `
		AND target_langs = ` + s.driver.Placeholder(2) + `
		AND source_text IN (` + strings.Join(marks, ", ") + `)`

	return s.driver.Query(ctx, query, args, func(row Scanner) error {
		var text string
		var blob []byte
		if err := row.Scan(&text, &blob); err != nil {
			return err
		}
		record, err := codec.DecodeFor(blob, text)
		if err != nil {
			s.logger.Warn("skipping corrupt cache entry",
				slog.String("source_lang", scope.SourceLang),
				slog.String("target_langs", scope.TargetSet),
				slog.Int("source_len", len(text)),
				slog.String("error", err.Error()))
			return nil
		}
		found[text] = record
		return nil
	})
}

// BatchPut upserts entries in one transaction: absent keys are inserted,
// present keys have their blob fully replaced. When a batch names a key more
// than once the last entry wins. An empty batch performs no backend call.
func (s *Store) BatchPut(ctx context.Context, entries []tlcache.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	last := make(map[tlcache.CacheKey]int, len(entries))
	for i, e := range entries {
		last[e.Key] = i
	}

	now := s.now().UTC()
	rows := make([][]any, 0, len(last))
	for i, e := range entries {
		if last[e.Key] != i {
			continue
		}
		blob, err := codec.Encode(e.Key.SourceText, e.Record)
		if err != nil {
			return err
		}
		created := e.CreatedAt
		if created.IsZero() {
			created = now
		}
		updated := e.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		rows = append(rows, []any{
			e.Key.SourceText,
			e.Key.SourceLang,
			e.Key.TargetSet,
			blob,
			created.UnixMilli(),
			updated.UnixMilli(),
		})
	}

	return s.driver.ExecuteMany(ctx, s.upsertSQL(), rows)
}

func (s *Store) upsertSQL() string {
	p := s.driver.Placeholder
	return `INSERT INTO ` + TableName + ` (source_text, source_lang, target_langs, record, created_at, updated_at)
		VALUES (` + p(1) + `, ` + p(2) + `, ` + p(3) + `, ` + p(4) + `, ` + p(5) + `, ` + p(6) + `)
		ON CONFLICT (source_text, source_lang, target_langs) DO UPDATE SET
			record = excluded.record,
			updated_at = excluded.updated_at`
}

// Each calls fn for every decodable entry in the table, ordered by id.
// Corrupt rows are logged and skipped.
func (s *Store) Each(ctx context.Context, fn func(tlcache.Entry) error) error {
	query := `SELECT source_text, source_lang, target_langs, record, created_at, updated_at
		FROM ` + TableName + ` ORDER BY id`

	return s.driver.Query(ctx, query, nil, func(row Scanner) error {
		var (
			e                tlcache.Entry
			blob             []byte
			created, updated int64
		)
		if err := row.Scan(&e.Key.SourceText, &e.Key.SourceLang, &e.Key.TargetSet, &blob, &created, &updated); err != nil {
			return err
		}
		record, err := codec.DecodeFor(blob, e.Key.SourceText)
		if err != nil {
			s.logger.Warn("skipping corrupt cache entry", slog.String("error", err.Error()))
			return nil
		}
		e.Record = record
		e.CreatedAt = time.UnixMilli(created).UTC()
		e.UpdatedAt = time.UnixMilli(updated).UTC()
		return fn(e)
	})
}

// Count returns the number of rows in the cache table.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.driver.Query(ctx, `SELECT COUNT(*) FROM `+TableName, nil, func(row Scanner) error {
		return row.Scan(&n)
	})
	return n, err
}

var _ tlcache.TranslationCache = (*Store)(nil)
