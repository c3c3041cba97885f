package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/ZaguanLabs/tlcache"
)

// ExportVersion is the format version written by Exporter.
const ExportVersion = "2"

// defaultImportChunk is the number of entries written per BatchPut on import.
const defaultImportChunk = 500

var errUnsupportedSource = errors.New("cache does not support enumeration")

// ExportFormat represents the JSON structure for cache export/import.
type ExportFormat struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exported_at"`
	Entries    []ExportEntry     `json:"entries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExportEntry represents a single cache entry.
type ExportEntry struct {
	SourceText   string         `json:"source_text"`
	SourceLang   string         `json:"source_lang"`
	TargetLangs  []string       `json:"target_langs"`
	Translations tlcache.Record `json:"translations"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Exporter provides cache export functionality.
type Exporter struct {
	source Source
}

// NewExporter creates a new cache exporter.
func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Export writes the cache contents to a writer in JSON format.
func (e *Exporter) Export(ctx context.Context, w io.Writer, metadata map[string]string) (int, error) {
	entries := []ExportEntry{}
	err := e.source.Each(ctx, func(entry tlcache.Entry) error {
		entries = append(entries, ExportEntry{
			SourceText:   entry.Key.SourceText,
			SourceLang:   entry.Key.SourceLang,
			TargetLangs:  tlcache.SplitTargets(entry.Key.TargetSet),
			Translations: entry.Record,
			CreatedAt:    entry.CreatedAt,
			UpdatedAt:    entry.UpdatedAt,
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reading cache entries: %w", err)
	}

	export := ExportFormat{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Entries:    entries,
		Metadata:   metadata,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return 0, fmt.Errorf("encoding JSON: %w", err)
	}

	return len(entries), nil
}

// ExportToFile exports the cache to a file.
// The path is provided by the caller and is intentionally user-controlled.
func (e *Exporter) ExportToFile(ctx context.Context, path string, metadata map[string]string) (int, error) {
	f, err := os.Create(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	return e.Export(ctx, f, metadata)
}

// Importer provides cache import functionality.
type Importer struct {
	cache     tlcache.TranslationCache
	chunkSize int
	logger    *slog.Logger
}

// NewImporter creates a new cache importer writing through cache.
func NewImporter(cache tlcache.TranslationCache) *Importer {
	return &Importer{cache: cache, chunkSize: defaultImportChunk, logger: slog.Default()}
}

// SetChunkSize sets the number of entries written per batch.
func (i *Importer) SetChunkSize(n int) {
	if n > 0 {
		i.chunkSize = n
	}
}

// Import reads cache entries from a reader and loads them into the cache.
// Target sets are re-canonicalized, so hand-edited files key correctly.
// Entries without translations are skipped. A failed chunk is counted and
// the import continues.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var export ExportFormat
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	if export.Version != ExportVersion {
		return nil, fmt.Errorf("unsupported export version %q", export.Version)
	}

	result := &ImportResult{
		Version:  export.Version,
		Metadata: export.Metadata,
	}

	batch := make([]tlcache.Entry, 0, i.chunkSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := i.cache.BatchPut(ctx, batch); err != nil {
			i.logger.Warn("import batch failed", slog.Int("entries", len(batch)), slog.String("error", err.Error()))
			result.Failed += len(batch)
		} else {
			result.Imported += len(batch)
		}
		batch = batch[:0]
	}

	for _, entry := range export.Entries {
		if len(entry.Translations) == 0 {
			result.Skipped++
			continue
		}
		batch = append(batch, tlcache.Entry{
			Key:       tlcache.NewCacheKey(entry.SourceText, entry.SourceLang, entry.TargetLangs),
			Record:    entry.Translations,
			CreatedAt: entry.CreatedAt,
			UpdatedAt: entry.UpdatedAt,
		})
		if len(batch) == i.chunkSize {
			flush()
		}
	}
	flush()

	return result, ctx.Err()
}

// ImportFromFile imports cache entries from a file.
// The path is provided by the caller and is intentionally user-controlled.
func (i *Importer) ImportFromFile(ctx context.Context, path string) (*ImportResult, error) {
	f, err := os.Open(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return i.Import(ctx, f)
}

// ImportResult contains statistics about the import operation.
type ImportResult struct {
	Version  string
	Metadata map[string]string
	Imported int
	Skipped  int
	Failed   int
}
