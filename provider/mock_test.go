package provider

import (
	"context"
	"errors"
	"testing"
)

func TestMockProvider(t *testing.T) {
	m := NewMockProvider()

	req := TranslateRequest{
		Items:       []Item{{ID: "0", Content: "你好", Lang: "zh"}, {ID: "1", Content: "未知", Lang: "zh"}},
		TargetLangs: []string{"en", "ja"},
	}

	result, err := m.Translate(context.Background(), req)
	if err != nil {
		t.Fatalf("MockProvider.Translate failed: %v", err)
	}

	if result[0].ID != "0" || result[0].Translations["en"] != "Hello" {
		t.Errorf("unexpected first record: %+v", result[0])
	}
	if result[1].Translations["ja"] != "[ja] 未知" {
		t.Errorf("Expected '[ja] 未知', got %q", result[1].Translations["ja"])
	}
	if _, ok := result[0].Translations["ko"]; ok {
		t.Error("records should only carry requested languages")
	}

	if m.CallCount() != 1 {
		t.Errorf("Expected CallCount 1, got %d", m.CallCount())
	}
	if last := m.LastRequest(); last == nil || len(last.Items) != 2 {
		t.Errorf("LastRequest() = %+v", last)
	}
}

func TestMockProvider_Scripted(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockProvider()
	m.Errors = []error{boom, nil}
	m.Drop = map[string]bool{"世界": true}

	req := TranslateRequest{
		Items:       []Item{{ID: "0", Content: "你好"}, {ID: "1", Content: "世界"}},
		TargetLangs: []string{"en"},
	}

	if _, err := m.Translate(context.Background(), req); !errors.Is(err, boom) {
		t.Fatalf("first call error = %v, want boom", err)
	}

	result, err := m.Translate(context.Background(), req)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if len(result) != 1 || result[0].ID != "0" {
		t.Errorf("dropped item should be omitted, got %+v", result)
	}

	m.Empty = true
	result, _ = m.Translate(context.Background(), req)
	if len(result) != 0 {
		t.Errorf("Empty mock returned %d records", len(result))
	}

	m.Reset()
	if m.CallCount() != 0 || m.LastRequest() != nil {
		t.Error("Reset should clear call history")
	}
}
