// Command tlcache translates JSON batches of strings into several languages,
// serving repeats from a durable translation cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZaguanLabs/tlcache"
	"github.com/ZaguanLabs/tlcache/cache"
	"github.com/ZaguanLabs/tlcache/internal/config"
	"github.com/ZaguanLabs/tlcache/internal/logging"
	"github.com/ZaguanLabs/tlcache/provider"
	"github.com/ZaguanLabs/tlcache/store"
	"github.com/ZaguanLabs/tlcache/store/db"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = tlcache.Version
	commit    = tlcache.GitCommit
	buildDate = tlcache.BuildDate
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{
		v:           config.New(),
		stdin:       stdin,
		stdout:      stdout,
		stderr:      stderr,
		newProvider: openAIProvider,
	}
	return a.execute(ctx, args)
}

// providerFactory builds the external translator from configuration.
type providerFactory func(cfg *config.Config) (tlcache.AIProvider, error)

type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config

	stdin          io.Reader
	stdout, stderr io.Writer

	newProvider providerFactory
}

func (a *app) execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tlcache",
		Short: tlcache.Description,
		Long: `tlcache translates batches of strings into several target languages with
an AI model, caching every validated translation so repeats never reach the
model again.

Examples:
  tlcache translate request.json          # Translate a request file
  cat request.json | tlcache translate    # Translate from stdin
  tlcache --driver postgres --dsn postgres://localhost/tl migrate
  tlcache export cache.json               # Dump the cache
  tlcache import cache.json               # Load a dump`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.tlcache.yaml)")
	flags.String("driver", "sqlite", "Cache backend: sqlite, postgres or memory")
	flags.String("dsn", "translations.db", "SQLite file or PostgreSQL DSN")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")

	a.v.BindPFlag("backend.driver", flags.Lookup("driver"))
	a.v.BindPFlag("backend.dsn", flags.Lookup("dsn"))
	a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(
		a.translateCommand(),
		a.migrateCommand(),
		a.exportCommand(),
		a.importCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logging.SetOutput(a.stderr, false)
	logging.SetLevelFromString(cfg.Log.Level)
	a.cfg = cfg
	return nil
}

// backend is an opened cache with its enumeration view and cleanup.
type backend struct {
	cache   tlcache.TranslationCache
	source  cache.Source
	closers []func() error
}

func (b *backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openBackend opens the configured cache, creating the schema when missing,
// and puts the Redis tier in front of it when configured.
func (a *app) openBackend(ctx context.Context) (*backend, error) {
	cfg := a.cfg.Backend
	b := &backend{}

	if cfg.Driver == "memory" {
		mem := cache.NewMemory()
		b.cache, b.source = mem, mem
	} else {
		driver, err := db.NewDriver(ctx, db.Config{
			Driver:        cfg.Driver,
			DSN:           cfg.DSN,
			ReadDSN:       cfg.ReadDSN,
			WriteDSN:      cfg.WriteDSN,
			ReadPoolSize:  cfg.ReadPoolSize,
			WritePoolSize: cfg.WritePoolSize,
		})
		if err != nil {
			return nil, err
		}
		s := store.New(driver, store.WithLogger(logging.Op()))
		b.closers = append(b.closers, s.Close)
		if err := s.Migrate(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("migrating %s backend: %w", driver.Name(), err)
		}
		b.cache, b.source = s, s
	}

	if a.cfg.Redis.URL != "" {
		tier, err := cache.NewRedisTier(ctx, b.cache, cache.RedisConfig{URL: a.cfg.Redis.URL, TTL: a.cfg.Redis.TTL})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		tier.SetLogger(logging.Op())
		b.closers = append(b.closers, tier.Close)
		b.cache, b.source = tier, tier
	}

	return b, nil
}

func (a *app) retryConfig() tlcache.RetryConfig {
	return tlcache.RetryConfig{MaxAttempts: a.cfg.Retry.Attempts, Delay: a.cfg.Retry.Delay}
}

// openAIProvider builds the production provider chain: retry around the
// rate limiter around the circuit breaker around OpenAI.
func openAIProvider(cfg *config.Config) (tlcache.AIProvider, error) {
	pc := cfg.Provider
	if pc.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key required (provider.api_key, TLCACHE_PROVIDER_API_KEY or OPENAI_API_KEY)")
	}

	var p tlcache.AIProvider = provider.NewOpenAIProvider(provider.OpenAIConfig{
		APIKey:  pc.APIKey,
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
		Timeout: pc.Timeout,
	})
	p = tlcache.NewBreakerProvider(p, tlcache.BreakerConfig{Name: "openai", Logger: logging.Op()})
	if pc.RequestsPerMinute > 0 {
		p = tlcache.NewRateLimitedProvider(p, tlcache.RateLimitConfig{RequestsPerMinute: pc.RequestsPerMinute})
	}
	return tlcache.NewRetryableProvider(p, tlcache.RetryConfig{
		MaxAttempts: pc.Attempts,
		Delay:       2 * time.Second,
	}), nil
}

func (a *app) translateCommand() *cobra.Command {
	var (
		force       bool
		langs       []string
		quiet       bool
		output      string
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "translate [file]",
		Short: "Translate a request batch",
		Long: `Reads a request {"data": [{"content": "...", "lang": "zh"}, ...]} from the file
(or stdin) and prints the response envelope {"code", "message", "data"}.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			req, err := a.readRequest(args)
			if err != nil {
				return err
			}
			if force {
				req.Force = true
			}
			if len(langs) > 0 {
				req.TargetLangs = langs
			}

			p, err := a.newProvider(a.cfg)
			if err != nil {
				return err
			}

			b, err := a.openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			registry := prometheus.NewRegistry()
			translator := tlcache.NewTranslator(p,
				tlcache.WithCache(b.cache),
				tlcache.WithTargetLangs(a.cfg.Translate.TargetLangs...),
				tlcache.WithCacheRetry(a.retryConfig()),
				tlcache.WithTranslateTimeout(a.cfg.Translate.Timeout),
				tlcache.WithLogger(logging.Op()),
				tlcache.WithMetrics(tlcache.NewMetrics("tlcache", registry)),
			)

			out := a.stdout
			if output != "" {
				f, err := os.Create(output) // #nosec G304 - CLI tool writes user-specified files
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			start := time.Now()
			result, err := translator.Translate(ctx, *req)
			elapsed := time.Since(start)

			if metricsFile != "" {
				if werr := prometheus.WriteToTextfile(metricsFile, registry); werr != nil {
					logging.Op().Warn("writing metrics failed", slog.String("error", werr.Error()))
				}
			}

			if err != nil {
				writeJSON(out, tlcache.ErrorResponse(err))
				return fmt.Errorf("translation failed: %w", err)
			}
			if err := writeJSON(out, tlcache.NewResponse(result)); err != nil {
				return err
			}

			if !quiet {
				fmt.Fprintf(a.stderr, "Done in %v\n", elapsed.Round(time.Millisecond))
				fmt.Fprintf(a.stderr, "  Items:        %d\n", len(result.Results))
				fmt.Fprintf(a.stderr, "  From cache:   %d\n", result.CachedCount)
				fmt.Fprintf(a.stderr, "  Translated:   %d\n", result.TranslatedCount)
				fmt.Fprintf(a.stderr, "  Persisted:    %d\n", result.PersistedCount)
				fmt.Fprintf(a.stderr, "  Rejected:     %d\n", result.RejectedCount)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the cache lookup and translate everything")
	cmd.Flags().StringSliceVar(&langs, "lang", nil, "Target languages (default: translate.target_langs)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress stats output")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	return cmd
}

func (a *app) readRequest(args []string) (*tlcache.Request, error) {
	var data []byte
	var err error
	if len(args) == 0 {
		data, err = io.ReadAll(a.stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(args[0]) // #nosec G304 - CLI tool reads user-specified files
		if err != nil {
			return nil, fmt.Errorf("reading file: %w", err)
		}
	}

	var req tlcache.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing request: %w", err)
	}
	return &req, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the cache table and indexes when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()
			fmt.Fprintf(a.stdout, "%s backend is up to date\n", a.cfg.Backend.Driver)
			return nil
		},
	}
}

func (a *app) exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write every cache entry as JSON (stdout when no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			exporter := cache.NewExporter(b.source)
			meta := map[string]string{"driver": a.cfg.Backend.Driver, "version": version}

			var n int
			if len(args) == 0 {
				n, err = exporter.Export(ctx, a.stdout, meta)
			} else {
				n, err = exporter.ExportToFile(ctx, args[0], meta)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "Exported %d entries\n", n)
			return nil
		},
	}
}

func (a *app) importCommand() *cobra.Command {
	var chunk int

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load cache entries from an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			importer := cache.NewImporter(tlcache.NewRetryingCache(b.cache, a.retryConfig()))
			importer.SetChunkSize(chunk)

			result, err := importer.ImportFromFile(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Imported %d entries (%d skipped, %d failed)\n", result.Imported, result.Skipped, result.Failed)
			if result.Failed > 0 {
				return fmt.Errorf("%d entries failed to import", result.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&chunk, "chunk", 500, "Entries written per transaction")
	return cmd
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "%s %s\n", tlcache.Name, version)
			if commit != "unknown" && commit != "" {
				fmt.Fprintf(a.stdout, "  commit:  %s\n", commit)
			}
			if buildDate != "unknown" && buildDate != "" {
				fmt.Fprintf(a.stdout, "  built:   %s\n", buildDate)
			}
		},
	}
}
