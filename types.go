package tlcache

import (
	"encoding/json"
	"time"
)

// Item is one string to translate.
type Item struct {
	Content string `json:"content"`
	Lang    string `json:"lang"`
}

// Request is a batch translation request.
type Request struct {
	Items       []Item   `json:"data"`
	Force       bool     `json:"force,omitempty"`        // Skip the cache lookup entirely
	TargetLangs []string `json:"target_langs,omitempty"` // Overrides the translator's default set
}

// Record maps a target language code to translated text.
type Record map[string]string

// Clone returns a copy of the record. A nil record clones to nil.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Entry is a persisted cache row.
type Entry struct {
	Key       CacheKey
	Record    Record
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Result is the translation outcome for one input item, in input order.
// A language missing from Translations means no translation is available.
type Result struct {
	Key          string
	SourceLang   string
	Translations Record
	Cached       bool
	Rejected     string // Validation failure reason, empty when the result was accepted
}

// marshalWith flattens the result into {"key": ..., "<lang>": text|null}.
// Every language in langs is emitted; absent ones are null, except the
// source language, which falls back to the source text.
func (r Result) marshalWith(langs []string) ([]byte, error) {
	out := make(map[string]any, len(langs)+2)
	out["key"] = r.Key
	if r.SourceLang != "" {
		out[r.SourceLang] = r.Key
	}
	for _, lang := range langs {
		if text, ok := r.Translations[lang]; ok {
			out[lang] = text
		} else if lang != r.SourceLang {
			out[lang] = nil
		}
	}
	return json.Marshal(out)
}

// BatchResult is the outcome of a Translate call.
type BatchResult struct {
	Results         []Result
	TargetLangs     []string // Canonical, sorted target set the batch was served for
	CachedCount     int      // Items served from the cache
	TranslatedCount int      // Items sent to the provider
	PersistedCount  int      // Entries written to the cache
	RejectedCount   int      // Translated items that failed validation
}

// ResultSet renders results with a fixed language list.
type ResultSet struct {
	Results []Result
	Langs   []string
}

// MarshalJSON implements json.Marshaler.
func (s ResultSet) MarshalJSON() ([]byte, error) {
	rows := make([]json.RawMessage, len(s.Results))
	for i, r := range s.Results {
		b, err := r.marshalWith(s.Langs)
		if err != nil {
			return nil, err
		}
		rows[i] = b
	}
	return json.Marshal(rows)
}

// Response is the envelope returned to request-handling callers.
type Response struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    ResultSet `json:"data"`
}

// DefaultTargetLangs is the language set requested when none is given.
var DefaultTargetLangs = []string{"zh-TW", "tr", "th", "ja", "ko", "en", "my"}
