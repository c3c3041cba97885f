// Package provider implements the external translator: an OpenAI-backed
// provider and a scriptable mock.
package provider

import "github.com/ZaguanLabs/tlcache"

// AIProvider is the interface for AI translation backends.
// This is an alias to the main package interface for convenience.
type AIProvider = tlcache.AIProvider

// TranslateRequest is an alias to the main package type.
type TranslateRequest = tlcache.TranslateRequest

// Item is an alias to the main package type.
type Item = tlcache.ProviderItem

// Record is an alias to the main package type.
type Record = tlcache.ProviderRecord
