package tlcache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// TargetSetSeparator joins the sorted language codes of a canonical target set.
const TargetSetSeparator = ","

// CacheKey addresses one cache entry. SourceText is matched exactly,
// including case and surrounding whitespace.
type CacheKey struct {
	SourceText string
	SourceLang string
	TargetSet  string // Canonical target set, see CanonicalTargets
}

// NewCacheKey builds a key, canonicalizing the target languages.
func NewCacheKey(sourceText, sourceLang string, targetLangs []string) CacheKey {
	return CacheKey{
		SourceText: sourceText,
		SourceLang: strings.TrimSpace(sourceLang),
		TargetSet:  CanonicalTargets(targetLangs),
	}
}

// Scope returns the key's language scope, the part batch lookups must share.
func (k CacheKey) Scope() Scope {
	return Scope{SourceLang: k.SourceLang, TargetSet: k.TargetSet}
}

// Digest returns a fixed-length hex digest of the full key, suitable for
// key-value stores with key length limits.
func (k CacheKey) Digest() string {
	h := sha256.New()
	h.Write([]byte(k.SourceLang))
	h.Write([]byte{0})
	h.Write([]byte(k.TargetSet))
	h.Write([]byte{0})
	h.Write([]byte(k.SourceText))
	return hex.EncodeToString(h.Sum(nil))
}

// Scope is the (source language, target set) pair shared by a lookup batch.
type Scope struct {
	SourceLang string
	TargetSet  string
}

// Key returns the cache key for text within the scope.
func (s Scope) Key(text string) CacheKey {
	return CacheKey{SourceText: text, SourceLang: s.SourceLang, TargetSet: s.TargetSet}
}

// CanonicalTargets returns the canonical form of a set of language codes:
// trimmed, blank codes dropped, duplicates removed, sorted and joined.
// Two sets naming the same languages in any order yield the same string.
func CanonicalTargets(langs []string) string {
	return strings.Join(TargetList(langs), TargetSetSeparator)
}

// TargetList returns the sorted, deduplicated language codes of a set.
func TargetList(langs []string) []string {
	seen := make(map[string]bool, len(langs))
	out := make([]string, 0, len(langs))
	for _, lang := range langs {
		lang = strings.TrimSpace(lang)
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// SplitTargets reverses CanonicalTargets.
func SplitTargets(targetSet string) []string {
	if targetSet == "" {
		return nil
	}
	return strings.Split(targetSet, TargetSetSeparator)
}
