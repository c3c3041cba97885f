package tlcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNewResponse_JSONShape(t *testing.T) {
	result := &BatchResult{
		TargetLangs: []string{"en", "ja"},
		Results: []Result{
			{Key: "你好", SourceLang: "zh", Translations: Record{"en": "Hello", "ja": "こんにちは"}},
			{Key: "世界", SourceLang: "zh", Translations: Record{"en": "World"}},
		},
	}

	b, err := json.Marshal(NewResponse(result))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded struct {
		Code    int              `json:"code"`
		Message string           `json:"message"`
		Data    []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", decoded.Code)
	}
	if len(decoded.Data) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(decoded.Data))
	}

	first := decoded.Data[0]
	if first["key"] != "你好" || first["zh"] != "你好" || first["en"] != "Hello" || first["ja"] != "こんにちは" {
		t.Errorf("first row = %v", first)
	}

	second := decoded.Data[1]
	ja, present := second["ja"]
	if !present || ja != nil {
		t.Errorf("missing language should be null, got %v (present=%v)", ja, present)
	}
}

func TestNewResponse_SourceLanguageInTargets(t *testing.T) {
	result := &BatchResult{
		TargetLangs: []string{"en", "zh"},
		Results: []Result{
			{Key: "你好", SourceLang: "zh", Translations: Record{"en": "Hello"}},
			{Key: "Hi", SourceLang: "en", Translations: Record{}},
		},
	}

	b, err := json.Marshal(NewResponse(result))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got := decoded.Data[0]["zh"]; got != "你好" {
		t.Errorf("source language field = %v, want the source text", got)
	}
	if got := decoded.Data[1]["en"]; got != "Hi" {
		t.Errorf("source language field = %v, want the source text", got)
	}
	if got, present := decoded.Data[1]["zh"]; !present || got != nil {
		t.Errorf("missing target should be null, got %v (present=%v)", got, present)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"empty request", ErrEmptyRequest, http.StatusBadRequest},
		{"provider", &ExternalTranslateError{Message: "down"}, http.StatusBadGateway},
		{"wrapped provider", fmt.Errorf("translate: %w", &ExternalTranslateError{Message: "down"}), http.StatusBadGateway},
		{"backend", &PermanentBackendError{Op: "query", Cause: errors.New("x")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ErrorResponse(tt.err)
			if resp.Code != tt.code {
				t.Errorf("code = %d, want %d", resp.Code, tt.code)
			}
			if resp.Message != tt.err.Error() {
				t.Errorf("message = %q", resp.Message)
			}

			b, err := json.Marshal(resp)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if !strings.Contains(string(b), `"data":[]`) {
				t.Errorf("error response must carry empty data, got %s", b)
			}
		})
	}
}
