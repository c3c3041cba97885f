package tlcache

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Validator decides whether a fresh translation may be cached. A rejected
// translation is still returned to the caller.
type Validator interface {
	Validate(item Item, record Record, targets []string) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(item Item, record Record, targets []string) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(item Item, record Record, targets []string) error {
	return f(item, record, targets)
}

// DefaultValidator requires every target language, plausible lengths
// relative to the source, preserved @tokens and, for HTML content, the
// same element tags.
func DefaultValidator() Validator {
	return AllOf(
		PresencePolicy{},
		LengthPolicy{MinRatio: 0.1, MaxRatio: 8, Basis: BasisSource},
		TokenPolicy{},
		MarkupPolicy{},
	)
}

// AllOf passes only when every validator passes. The first failure is returned.
func AllOf(validators ...Validator) Validator {
	return ValidatorFunc(func(item Item, record Record, targets []string) error {
		for _, v := range validators {
			if err := v.Validate(item, record, targets); err != nil {
				return err
			}
		}
		return nil
	})
}

// PresencePolicy requires a non-blank translation for every target language.
type PresencePolicy struct{}

// Validate implements Validator.
func (PresencePolicy) Validate(item Item, record Record, targets []string) error {
	for _, lang := range targets {
		if strings.TrimSpace(record[lang]) == "" {
			return &ValidationError{Lang: lang, Reason: "missing translation"}
		}
	}
	return nil
}

// LengthBasis selects the text translated lengths are compared against.
type LengthBasis int

const (
	// BasisSource compares against the source text.
	BasisSource LengthBasis = iota
	// BasisTarget compares against the record's own field for the item's
	// language when present, falling back to the source text.
	BasisTarget
)

// LengthPolicy rejects translations whose rune length is implausible
// relative to the basis text. Texts of at most MinLength runes are exempt.
type LengthPolicy struct {
	MinRatio  float64
	MaxRatio  float64
	Basis     LengthBasis
	MinLength int // Basis length at or below which the check is skipped (default 4)
}

// Validate implements Validator.
func (p LengthPolicy) Validate(item Item, record Record, targets []string) error {
	basis := item.Content
	if p.Basis == BasisTarget {
		if own, ok := record[item.Lang]; ok && own != "" {
			basis = own
		}
	}

	minLength := p.MinLength
	if minLength <= 0 {
		minLength = 4
	}
	base := utf8.RuneCountInString(strings.TrimSpace(basis))
	if base <= minLength {
		return nil
	}

	for _, lang := range targets {
		text, ok := record[lang]
		if !ok {
			continue
		}
		ratio := float64(utf8.RuneCountInString(strings.TrimSpace(text))) / float64(base)
		if p.MinRatio > 0 && ratio < p.MinRatio {
			return &ValidationError{Lang: lang, Reason: fmt.Sprintf("translation too short (ratio %.2f)", ratio)}
		}
		if p.MaxRatio > 0 && ratio > p.MaxRatio {
			return &ValidationError{Lang: lang, Reason: fmt.Sprintf("translation too long (ratio %.2f)", ratio)}
		}
	}
	return nil
}

var tokenPattern = regexp.MustCompile(`@[A-Za-z0-9_]+`)

// TokenPolicy requires every @token literal of the source to appear verbatim
// in each translation.
type TokenPolicy struct{}

// Validate implements Validator.
func (TokenPolicy) Validate(item Item, record Record, targets []string) error {
	tokens := tokenPattern.FindAllString(item.Content, -1)
	if len(tokens) == 0 {
		return nil
	}
	for _, lang := range targets {
		text, ok := record[lang]
		if !ok {
			continue
		}
		for _, tok := range tokens {
			if !strings.Contains(text, tok) {
				return &ValidationError{Lang: lang, Reason: fmt.Sprintf("token %s not preserved", tok)}
			}
		}
	}
	return nil
}

// MarkupPolicy requires HTML content to keep its element tags. Plain text
// sources pass unconditionally.
type MarkupPolicy struct{}

// Validate implements Validator.
func (MarkupPolicy) Validate(item Item, record Record, targets []string) error {
	if !strings.Contains(item.Content, "<") {
		return nil
	}
	want, err := tagSignature(item.Content)
	if err != nil || want == "" {
		return nil
	}
	for _, lang := range targets {
		text, ok := record[lang]
		if !ok {
			continue
		}
		got, err := tagSignature(text)
		if err != nil {
			return &ValidationError{Lang: lang, Reason: "unparseable markup"}
		}
		if got != want {
			return &ValidationError{Lang: lang, Reason: "markup not preserved"}
		}
	}
	return nil
}

// tagSignature returns the sorted element names found inside the fragment body.
func tagSignature(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	var tags []string
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			if n.Type == html.ElementNode {
				tags = append(tags, n.Data)
			}
		}
	})
	sort.Strings(tags)
	return strings.Join(tags, " "), nil
}
