package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ZaguanLabs/tlcache"
	"github.com/ZaguanLabs/tlcache/internal/config"
	"github.com/ZaguanLabs/tlcache/provider"
)

// testApp returns an app whose provider is the given mock.
func testApp(mock *provider.MockProvider, stdin string) (*app, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	a := &app{
		v:      config.New(),
		stdin:  strings.NewReader(stdin),
		stdout: &stdout,
		stderr: &stderr,
		newProvider: func(*config.Config) (tlcache.AIProvider, error) {
			return mock, nil
		},
	}
	return a, &stdout, &stderr
}

const request = `{"data": [{"content": "你好", "lang": "zh"}, {"content": "世界", "lang": "zh"}, {"content": "你好", "lang": "zh"}]}`

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"version"}, strings.NewReader(""), &stdout, &stderr)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "tlcache") {
		t.Errorf("expected version output, got: %s", stdout.String())
	}
}

func TestRun_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TLCACHE_PROVIDER_API_KEY", "")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--driver", "memory", "translate"}, strings.NewReader(request), &stdout, &stderr)

	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "API key required") {
		t.Errorf("expected API key error, got: %v", err)
	}
}

func TestRun_UnknownDriver(t *testing.T) {
	a, _, _ := testApp(provider.NewMockProvider(), request)
	err := a.execute(context.Background(), []string{"--driver", "mysql", "translate"})
	if err == nil || !strings.Contains(err.Error(), "unknown backend.driver") {
		t.Errorf("expected driver validation error, got: %v", err)
	}
}

func TestRun_Translate(t *testing.T) {
	mock := provider.NewMockProvider()
	a, stdout, stderr := testApp(mock, request)

	err := a.execute(context.Background(), []string{"--driver", "memory", "translate", "--lang", "en,ja"})
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	var resp struct {
		Code int                 `json:"code"`
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout.String())
	}
	if resp.Code != 200 {
		t.Errorf("code = %d, want 200", resp.Code)
	}
	if len(resp.Data) != 3 {
		t.Fatalf("got %d results, want 3", len(resp.Data))
	}
	if resp.Data[0]["key"] != "你好" || resp.Data[0]["zh"] != "你好" || resp.Data[0]["en"] != "Hello" {
		t.Errorf("unexpected first result: %v", resp.Data[0])
	}
	if resp.Data[1]["ja"] != "世界" {
		t.Errorf("unexpected second result: %v", resp.Data[1])
	}

	// Duplicate contents reach the provider once.
	if got := len(mock.LastRequest().Items); got != 2 {
		t.Errorf("provider received %d items, want 2", got)
	}
	if !strings.Contains(stderr.String(), "Translated:   2") {
		t.Errorf("expected stats on stderr, got: %s", stderr.String())
	}
}

func TestRun_TranslateTimeoutFromConfig(t *testing.T) {
	t.Setenv("TLCACHE_TRANSLATE_TIMEOUT", "1500ms")

	var remaining time.Duration
	var hasDeadline bool
	mock := provider.NewMockProvider()
	mock.OnCall = func(ctx context.Context, req provider.TranslateRequest) {
		var deadline time.Time
		deadline, hasDeadline = ctx.Deadline()
		remaining = time.Until(deadline)
	}

	a, _, _ := testApp(mock, request)
	if err := a.execute(context.Background(), []string{"--driver", "memory", "translate", "-q"}); err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	if !hasDeadline {
		t.Fatal("provider call should carry a deadline")
	}
	if remaining <= 0 || remaining > 1500*time.Millisecond {
		t.Errorf("provider deadline in %v, want at most 1.5s", remaining)
	}
}

func TestRun_TranslateUsesCache(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cache.db")
	input := filepath.Join(t.TempDir(), "request.json")
	os.WriteFile(input, []byte(request), 0644)

	mock := provider.NewMockProvider()
	args := []string{"--driver", "sqlite", "--dsn", dsn, "translate", "--lang", "en,ja", input}

	a, _, _ := testApp(mock, "")
	if err := a.execute(context.Background(), args); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	a, _, stderr := testApp(mock, "")
	if err := a.execute(context.Background(), args); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if mock.CallCount() != 1 {
		t.Errorf("provider called %d times, want 1", mock.CallCount())
	}
	if !strings.Contains(stderr.String(), "From cache:   3") {
		t.Errorf("expected every item from cache, got: %s", stderr.String())
	}
}

func TestRun_TranslateProviderFailure(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.Empty = true
	a, stdout, _ := testApp(mock, request)

	err := a.execute(context.Background(), []string{"--driver", "memory", "translate", "-q"})
	if err == nil {
		t.Fatal("expected error for empty provider response")
	}
	if !strings.Contains(stdout.String(), `"code": 502`) {
		t.Errorf("expected 502 envelope, got: %s", stdout.String())
	}
}

func TestRun_TranslateInvalidRequest(t *testing.T) {
	a, _, _ := testApp(provider.NewMockProvider(), "not json")
	err := a.execute(context.Background(), []string{"--driver", "memory", "translate"})
	if err == nil || !strings.Contains(err.Error(), "parsing request") {
		t.Errorf("expected parse error, got: %v", err)
	}
}

func TestRun_TranslateMetricsFile(t *testing.T) {
	metrics := filepath.Join(t.TempDir(), "tlcache.prom")
	a, _, _ := testApp(provider.NewMockProvider(), request)

	err := a.execute(context.Background(), []string{"--driver", "memory", "translate", "-q", "--metrics-file", metrics})
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("metrics file missing: %v", err)
	}
	if !strings.Contains(string(data), "tlcache_lookups_total") {
		t.Errorf("metrics file lacks lookup counter:\n%s", data)
	}
}

func TestRun_MigrateExportImport(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "cache.db")
	dump := filepath.Join(dir, "dump.json")
	mock := provider.NewMockProvider()

	a, stdout, _ := testApp(mock, "")
	if err := a.execute(context.Background(), []string{"--driver", "sqlite", "--dsn", dsn, "migrate"}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "sqlite backend is up to date") {
		t.Errorf("unexpected migrate output: %s", stdout.String())
	}

	a, _, _ = testApp(mock, request)
	if err := a.execute(context.Background(), []string{"--driver", "sqlite", "--dsn", dsn, "translate", "-q", "--lang", "en"}); err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	a, _, stderr := testApp(mock, "")
	if err := a.execute(context.Background(), []string{"--driver", "sqlite", "--dsn", dsn, "export", dump}); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(stderr.String(), "Exported 2 entries") {
		t.Errorf("unexpected export output: %s", stderr.String())
	}

	other := filepath.Join(dir, "other.db")
	a, stdout, _ = testApp(mock, "")
	if err := a.execute(context.Background(), []string{"--driver", "sqlite", "--dsn", other, "import", dump}); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "Imported 2 entries") {
		t.Errorf("unexpected import output: %s", stdout.String())
	}
}
