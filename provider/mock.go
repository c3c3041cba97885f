package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZaguanLabs/tlcache"
)

// MockProvider is a scriptable AI provider for testing. It is safe for
// concurrent use.
type MockProvider struct {
	mu sync.Mutex

	// Translations maps source text to the record returned for it. Unknown
	// texts get "[lang] text" for every target language.
	Translations map[string]tlcache.Record

	// Errors are returned by successive calls, one per call, until exhausted.
	// A nil element lets that call succeed.
	Errors []error

	// Drop lists source texts whose records are omitted from responses.
	Drop map[string]bool

	// Empty makes every call return no records.
	Empty bool

	// OnCall, when set, runs at the start of every call outside the lock.
	OnCall func(ctx context.Context, req TranslateRequest)

	calls    int
	requests []TranslateRequest
}

// NewMockProvider creates a new mock provider with default translations.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Translations: map[string]tlcache.Record{
			"你好": {"en": "Hello", "ja": "こんにちは", "ko": "안녕하세요"},
			"世界": {"en": "World", "ja": "世界", "ko": "세계"},
		},
	}
}

// Translate returns mock translations.
func (m *MockProvider) Translate(ctx context.Context, req TranslateRequest) ([]Record, error) {
	if m.OnCall != nil {
		m.OnCall(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.requests = append(m.requests, cloneRequest(req))

	if len(m.Errors) > 0 {
		err := m.Errors[0]
		m.Errors = m.Errors[1:]
		if err != nil {
			return nil, err
		}
	}
	if m.Empty {
		return []Record{}, nil
	}

	records := make([]Record, 0, len(req.Items))
	for _, item := range req.Items {
		if m.Drop[item.Content] {
			continue
		}
		rec := make(tlcache.Record, len(req.TargetLangs))
		known := m.Translations[item.Content]
		for _, lang := range req.TargetLangs {
			if text, ok := known[lang]; ok {
				rec[lang] = text
			} else if known == nil {
				rec[lang] = fmt.Sprintf("[%s] %s", lang, item.Content)
			}
		}
		records = append(records, Record{ID: item.ID, Translations: rec})
	}

	return records, nil
}

func cloneRequest(req TranslateRequest) TranslateRequest {
	return TranslateRequest{
		Items:       append([]Item(nil), req.Items...),
		TargetLangs: append([]string(nil), req.TargetLangs...),
	}
}

// CallCount returns the number of Translate calls.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent request, or nil before the first call.
func (m *MockProvider) LastRequest() *TranslateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	req := m.requests[len(m.requests)-1]
	return &req
}

// Requests returns every request received, oldest first.
func (m *MockProvider) Requests() []TranslateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TranslateRequest(nil), m.requests...)
}

// Reset resets the call count and recorded requests.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
	m.requests = nil
}

// Verify MockProvider implements AIProvider
var _ AIProvider = (*MockProvider)(nil)
