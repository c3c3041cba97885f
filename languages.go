package tlcache

import "strings"

// LanguageNames maps language codes to human-readable names for AI prompts.
var LanguageNames = map[string]string{
	"zh":    "Simplified Chinese",
	"zh-CN": "Simplified Chinese",
	"zh-TW": "Traditional Chinese (Taiwan/Hong Kong usage)",
	"en":    "English",
	"ja":    "Japanese",
	"ko":    "Korean",
	"th":    "Thai",
	"tr":    "Turkish",
	"my":    "Burmese",
	"de":    "German",
	"fr":    "French",
	"es":    "Spanish",
	"pt":    "Portuguese",
	"ru":    "Russian",
	"vi":    "Vietnamese",
	"id":    "Indonesian",
	"ms":    "Malay",
	"ar":    "Arabic",
	"hi":    "Hindi",
	"it":    "Italian",
}

// GetLanguageName returns the human-readable name for a language code.
// Falls back to the base language, then to the code itself.
func GetLanguageName(langCode string) string {
	code := NormalizeLangCode(langCode)
	if name, ok := LanguageNames[code]; ok {
		return name
	}
	base := strings.SplitN(code, "-", 2)[0]
	if name, ok := LanguageNames[base]; ok {
		return name
	}
	return langCode
}

// NormalizeLangCode converts a locale to BCP 47 style ("zh_tw" → "zh-TW").
func NormalizeLangCode(langCode string) string {
	code := strings.ReplaceAll(strings.TrimSpace(langCode), "_", "-")
	parts := strings.SplitN(code, "-", 2)
	if len(parts) == 1 {
		return strings.ToLower(parts[0])
	}
	return strings.ToLower(parts[0]) + "-" + strings.ToUpper(parts[1])
}
