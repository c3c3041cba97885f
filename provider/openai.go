package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ZaguanLabs/tlcache"
)

// OpenAIProvider implements AIProvider using OpenAI's API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	batchSize   int
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string        // OpenAI API key
	Model       string        // Model to use (default: "gpt-4o-mini")
	Temperature float32       // Temperature for generation (default: 0.3)
	BaseURL     string        // Custom base URL (optional)
	Timeout     time.Duration // HTTP timeout per call (default: 60s)
	BatchSize   int           // Items per API call (default: 50)
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	config.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: userAgentTransport{base: http.DefaultTransport},
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
		batchSize:   batchSize,
	}
}

// Translate translates a batch of items into every target language. Large
// batches are split into several API calls.
func (p *OpenAIProvider) Translate(ctx context.Context, req TranslateRequest) ([]Record, error) {
	if len(req.Items) == 0 {
		return []Record{}, nil
	}

	records := make([]Record, 0, len(req.Items))
	for start := 0; start < len(req.Items); start += p.batchSize {
		end := min(start+p.batchSize, len(req.Items))
		chunk, err := p.translateChunk(ctx, req.Items[start:end], req.TargetLangs)
		if err != nil {
			return nil, err
		}
		records = append(records, chunk...)
	}
	return records, nil
}

func (p *OpenAIProvider) translateChunk(ctx context.Context, items []Item, targets []string) ([]Record, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.buildSystemPrompt(targets)},
			{Role: openai.ChatMessageRoleUser, Content: p.buildUserMessage(items)},
		},
		Temperature: p.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &tlcache.ExternalTranslateError{
			Message:   "OpenAI API call failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}

	if len(resp.Choices) == 0 {
		return nil, &tlcache.ExternalTranslateError{
			Message:   "no response from OpenAI",
			Cause:     tlcache.ErrEmptyResponse,
			Retryable: true,
		}
	}

	return p.parseResponse(resp.Choices[0].Message.Content)
}

func (p *OpenAIProvider) buildSystemPrompt(targets []string) string {
	var langs strings.Builder
	for _, code := range targets {
		fmt.Fprintf(&langs, "\n- \"%s\": %s", code, tlcache.GetLanguageName(code))
	}

	return fmt.Sprintf(`# Role
You are an expert localization specialist. You translate short product and interface strings with the fluency of a native speaker of each target language.

# Task
Translate every input item from its source language ("lang") into each of these target languages:%s

# Style Guide
- **Natural Flow**: Avoid literal translations. Phrase each string the way a native speaker would.
- **Tokens**: Keep every @token, placeholder ({name}, {{count}}, %%s, $1), URL and HTML tag exactly as it appears.
- **Formatting**: Preserve line breaks and meaningful whitespace.
- **Completeness**: Provide a translation for every item and every target language.

# Format
Return a valid JSON object with a single key "items": an array with one object per input item,
each carrying the item's "id" unchanged and a "translations" object keyed by target language code.
Example: { "items": [ { "id": "0", "translations": { "en": "Hello" } } ] }
- Do NOT wrap in Markdown code blocks.
- Do NOT add, merge, or drop items.`, langs.String())
}

// userAgentTransport stamps every request with the tlcache user agent.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", tlcache.UserAgent())
	return t.base.RoundTrip(req)
}

type promptItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Lang    string `json:"lang"`
}

func (p *OpenAIProvider) buildUserMessage(items []Item) string {
	out := make([]promptItem, len(items))
	for i, item := range items {
		out[i] = promptItem{ID: item.ID, Content: item.Content, Lang: item.Lang}
	}
	data, _ := json.Marshal(map[string][]promptItem{"items": out})
	return string(data)
}

type responseItem struct {
	ID           string            `json:"id"`
	Translations map[string]string `json:"translations"`
}

func (p *OpenAIProvider) parseResponse(content string) ([]Record, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```"), "```")

	var result struct {
		Items []responseItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, &tlcache.ExternalTranslateError{
			Message:   "invalid response format from OpenAI",
			Cause:     err,
			Retryable: false,
		}
	}

	records := make([]Record, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID == "" {
			continue
		}
		records = append(records, Record{ID: item.ID, Translations: tlcache.Record(item.Translations)})
	}
	return records, nil
}

func isRetryableError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}

	// Check for common retryable conditions
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"rate limit",
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
		"503",
		"502",
		"429",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// Verify OpenAIProvider implements AIProvider
var _ AIProvider = (*OpenAIProvider)(nil)
