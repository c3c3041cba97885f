// Package tlcache translates batches of strings into several target languages
// with an AI provider, caching every validated result so that the same text is
// never sent to the model twice for the same language scope.
//
// A cache entry is addressed by the source text, its language and the
// canonical set of requested target languages. Entries live in a relational
// store (embedded SQLite or pooled PostgreSQL), optionally fronted by Redis.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/tlcache"
//	    "github.com/ZaguanLabs/tlcache/provider"
//	    "github.com/ZaguanLabs/tlcache/store"
//	    "github.com/ZaguanLabs/tlcache/store/db/sqlite"
//	)
//
//	func main() {
//	    ctx := context.Background()
//	    driver, _ := sqlite.Open(sqlite.Config{Path: "translations.db"})
//	    s := store.New(driver)
//	    _ = s.Migrate(ctx)
//
//	    p := provider.NewOpenAIProvider(provider.OpenAIConfig{
//	        APIKey: os.Getenv("OPENAI_API_KEY"),
//	    })
//
//	    t := tlcache.NewTranslator(p,
//	        tlcache.WithCache(s),
//	        tlcache.WithTargetLangs("en", "ja"),
//	    )
//
//	    result, err := t.Translate(ctx, tlcache.Request{
//	        Items: []tlcache.Item{{Content: "语言", Lang: "zh"}},
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(result.Results[0].Translations["en"]) // Language
//	}
package tlcache
