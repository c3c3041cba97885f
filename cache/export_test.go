package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v9"

	"github.com/ZaguanLabs/tlcache"
)

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewMemory()
	src.BatchPut(ctx, []tlcache.Entry{
		{Key: key("你好"), Record: tlcache.Record{"en": "Hello", "ja": "こんにちは"}},
		{Key: key("世界"), Record: tlcache.Record{"en": "World", "ja": "世界"}},
	})

	var buf bytes.Buffer
	n, err := NewExporter(src).Export(ctx, &buf, map[string]string{"source": "test"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if n != 2 {
		t.Errorf("exported %d entries, want 2", n)
	}

	var export ExportFormat
	if err := json.Unmarshal(buf.Bytes(), &export); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if export.Version != ExportVersion {
		t.Errorf("version = %q", export.Version)
	}
	if got := strings.Join(export.Entries[0].TargetLangs, ","); got != "en,ja" {
		t.Errorf("target_langs = %q", got)
	}

	dst := NewMemory()
	result, err := NewImporter(dst).Import(ctx, &buf)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Imported != 2 || result.Failed != 0 {
		t.Errorf("result = %+v", result)
	}
	if result.Metadata["source"] != "test" {
		t.Errorf("metadata = %v", result.Metadata)
	}

	found, _ := dst.BatchGet(ctx, []tlcache.CacheKey{key("你好"), key("世界")})
	if found["你好"]["ja"] != "こんにちは" || found["世界"]["en"] != "World" {
		t.Errorf("imported records = %v", found)
	}
}

func TestImport_RecanonicalizesTargets(t *testing.T) {
	input := `{"version":"2","exported_at":"2024-01-01T00:00:00Z","entries":[
		{"source_text":"你好","source_lang":"zh","target_langs":["ja","en","ja"],"translations":{"en":"Hello"}},
		{"source_text":"空","source_lang":"zh","target_langs":["en"],"translations":{}}
	]}`

	ctx := context.Background()
	dst := NewMemory()
	result, err := NewImporter(dst).Import(ctx, strings.NewReader(input))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Imported != 1 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}

	found, _ := dst.BatchGet(ctx, []tlcache.CacheKey{key("你好")})
	if found["你好"]["en"] != "Hello" {
		t.Errorf("entry not found under canonical key: %v", found)
	}
}

func TestImport_Chunks(t *testing.T) {
	ctx := context.Background()
	src := NewMemory()
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		src.BatchPut(ctx, []tlcache.Entry{{Key: key(text), Record: tlcache.Record{"en": text}}})
	}

	var buf bytes.Buffer
	if _, err := NewExporter(src).Export(ctx, &buf, nil); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	counter := &countingCache{Memory: NewMemory()}
	imp := NewImporter(counter)
	imp.SetChunkSize(2)

	result, err := imp.Import(ctx, &buf)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Imported != 5 {
		t.Errorf("imported %d, want 5", result.Imported)
	}
	if counter.puts != 3 {
		t.Errorf("BatchPut called %d times, want 3", counter.puts)
	}
}

func TestImport_FailedChunksAreCounted(t *testing.T) {
	input := `{"version":"2","entries":[{"source_text":"a","source_lang":"zh","target_langs":["en"],"translations":{"en":"A"}}]}`

	imp := NewImporter(failingCache{err: errors.New("down")})
	result, err := imp.Import(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Failed != 1 || result.Imported != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestImport_Invalid(t *testing.T) {
	imp := NewImporter(NewMemory())

	if _, err := imp.Import(context.Background(), strings.NewReader("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := imp.Import(context.Background(), strings.NewReader(`{"version":"1.0","entries":[]}`)); err == nil {
		t.Error("expected error for unsupported version")
	}
}

func TestExportImport_Files(t *testing.T) {
	ctx := context.Background()
	src := NewMemory()
	src.BatchPut(ctx, []tlcache.Entry{{Key: key("a"), Record: tlcache.Record{"en": "A"}}})

	path := filepath.Join(t.TempDir(), "cache.json")
	if _, err := NewExporter(src).ExportToFile(ctx, path, nil); err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export file missing: %v", err)
	}

	dst := NewMemory()
	result, err := NewImporter(dst).ImportFromFile(ctx, path)
	if err != nil {
		t.Fatalf("ImportFromFile failed: %v", err)
	}
	if result.Imported != 1 || dst.Len() != 1 {
		t.Errorf("result = %+v, Len = %d", result, dst.Len())
	}
}

func TestExport_UnsupportedSource(t *testing.T) {
	client, _ := redismock.NewClientMock()
	defer client.Close()

	tier := NewRedisTierFromClient(client, failingCache{}, 0, "")
	_, err := NewExporter(tier).Export(context.Background(), &bytes.Buffer{}, nil)
	if err == nil {
		t.Error("expected error for a durable cache without enumeration")
	}
}

type countingCache struct {
	*Memory
	puts int
}

func (c *countingCache) BatchPut(ctx context.Context, entries []tlcache.Entry) error {
	c.puts++
	return c.Memory.BatchPut(ctx, entries)
}
