// Package app wires configuration, storage, search and transport into the
// serve and import commands.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/japaniel/kotoba/pkg/cache"
	"github.com/japaniel/kotoba/pkg/config"
	"github.com/japaniel/kotoba/pkg/db"
	"github.com/japaniel/kotoba/pkg/dictionary"
	"github.com/japaniel/kotoba/pkg/ingest"
	"github.com/japaniel/kotoba/pkg/reading"
	"github.com/japaniel/kotoba/pkg/search"
	"github.com/japaniel/kotoba/pkg/server"
	"github.com/japaniel/kotoba/pkg/tags"
	"github.com/japaniel/kotoba/pkg/telemetry"
)

// ErrNoDatabase is returned by Import when no database path is configured.
var ErrNoDatabase = errors.New("dictionary.db_path is required for import")

// Dictionary is a loaded dictionary ready to be searched.
type Dictionary struct {
	Store  *dictionary.Store
	Tags   *tags.Resolver
	Origin string
}

// Sources lists the dictionary files named by cfg. Yomitan banks are
// discovered in cfg.Dir.
func Sources(cfg config.DictionaryConfig) (dictionary.Sources, error) {
	var src dictionary.Sources
	if cfg.Dir != "" {
		var err error
		if src, err = dictionary.DiscoverSources(cfg.Dir); err != nil {
			return src, fmt.Errorf("discover %s: %w", cfg.Dir, err)
		}
	}
	if cfg.JMdictPath != "" {
		src.JMdict = append(src.JMdict, cfg.JMdictPath)
	}
	if cfg.FuriganaPath != "" {
		src.Furigana = append(src.Furigana, cfg.FuriganaPath)
	}
	return src, nil
}

// ensureJMdict downloads the JMdict file when configured to. A failed
// download is logged and the load continues without it.
func ensureJMdict(ctx context.Context, cfg config.DictionaryConfig, logger *slog.Logger) {
	if !cfg.AutoDownload {
		return
	}
	if err := dictionary.NewDownloader(logger).EnsureDictionary(ctx, cfg.JMdictPath); err != nil {
		logger.Warn("dictionary download failed, continuing without it",
			slog.String("path", cfg.JMdictPath), slog.Any("error", err))
	}
}

// LoadDictionary reads the SQLite database when it holds entries and falls
// back to the source files otherwise.
func LoadDictionary(ctx context.Context, cfg config.DictionaryConfig, logger *slog.Logger) (*Dictionary, error) {
	if cfg.DBPath != "" {
		d, err := loadFromDB(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if d != nil {
			logger.Info("dictionary loaded from database",
				slog.String("path", cfg.DBPath),
				slog.Int("entries", d.Store.Len()),
				slog.Int("furigana", d.Store.FuriganaLen()),
				slog.Int("tags", d.Tags.Len()),
			)
			return d, nil
		}
		logger.Info("database is empty, reading source files", slog.String("path", cfg.DBPath))
	}

	ensureJMdict(ctx, cfg, logger)
	src, err := Sources(cfg)
	if err != nil {
		return nil, err
	}
	if src.Empty() {
		logger.Warn("no dictionary sources configured; every search will be empty")
	}
	res, err := dictionary.Load(ctx, src, cfg.Workers, logger)
	if err != nil {
		return nil, err
	}
	return &Dictionary{Store: res.Store, Tags: res.Tags, Origin: "files"}, nil
}

// loadFromDB returns nil, nil when the database does not exist or has no
// entries.
func loadFromDB(path string) (*Dictionary, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	conn, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer conn.Close()

	n, err := db.CountEntries(conn)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	store, resolver, err := db.LoadDictionary(conn)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &Dictionary{Store: store, Tags: resolver, Origin: "database"}, nil
}

// NewSearchService builds the search service and its cache.
func NewSearchService(cfg config.CacheConfig, d *Dictionary, logger *slog.Logger, opts ...search.Option) (*search.Service, error) {
	c, err := cache.New[cache.RequestKey, *search.Response](cache.Config{
		Policy:     cache.Policy(cfg.Policy),
		MaxEntries: cfg.MaxEntries,
	})
	if err != nil {
		return nil, err
	}
	return search.NewService(logger, d.Store, d.Tags, c, opts...), nil
}

// NewHTTPHandler assembles routes and middleware. ready may be nil.
func NewHTTPHandler(cfg *config.Config, svc *search.Service, d *Dictionary, tel *telemetry.Telemetry, ready func() bool, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	var metrics http.Handler
	if tel.Enabled() {
		metrics = tel.Handler()
	}
	server.NewHandler(logger, svc, d.Tags, ready, ReadBuildInfo().Version).Routes(mux, cfg.Metrics.Path, metrics)

	return server.Chain(
		server.RequestID,
		server.Logger(logger, tel),
		server.Recovery(logger),
		server.CORS(cfg.CORS),
	)(mux)
}

// Serve loads the dictionary and serves HTTP until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	info := ReadBuildInfo()
	logger.Info("starting kotoba",
		slog.String("version", info.String()),
		slog.String("go", info.GoVersion),
		slog.String("addr", cfg.Server.Addr()),
		slog.String("cache_policy", cfg.Cache.Policy),
	)

	start := time.Now()
	d, err := LoadDictionary(ctx, cfg.Dictionary, logger)
	if err != nil {
		return err
	}
	logger.Info("dictionary ready", slog.String("origin", d.Origin), slog.Duration("elapsed", time.Since(start)))

	tel, err := telemetry.New(logger, cfg.Metrics.Enabled)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	svc, err := NewSearchService(cfg.Cache, d, logger, search.WithMetrics(tel))
	if err != nil {
		return err
	}
	tel.ObserveCache(svc.CacheStats)
	tel.ObserveDictionary(d.Store.Len(), d.Store.FuriganaLen(), d.Tags.Len())

	// Readiness drops as soon as shutdown begins.
	var ready atomic.Bool
	ready.Store(true)
	go func() {
		<-ctx.Done()
		ready.Store(false)
	}()

	handler := NewHTTPHandler(cfg, svc, d, tel, ready.Load, logger)
	return server.New(cfg.Server, handler, logger).Run(ctx)
}

// Import writes the configured sources into the SQLite database.
func Import(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ingest.Report, error) {
	dc := cfg.Dictionary
	if dc.DBPath == "" {
		return ingest.Report{}, ErrNoDatabase
	}

	ensureJMdict(ctx, dc, logger)
	src, err := Sources(dc)
	if err != nil {
		return ingest.Report{}, err
	}

	conn, err := db.Open(dc.DBPath)
	if err != nil {
		return ingest.Report{}, fmt.Errorf("open %s: %w", dc.DBPath, err)
	}
	defer conn.Close()

	ig, err := newIngester(conn, dc, logger)
	if err != nil {
		return ingest.Report{}, err
	}
	return ig.Import(ctx, src)
}

// ImportedSources lists the provenance records of the configured database.
func ImportedSources(cfg config.DictionaryConfig) ([]db.Source, error) {
	if cfg.DBPath == "" {
		return nil, ErrNoDatabase
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return nil, err
	}
	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	defer conn.Close()
	return db.ListSources(conn)
}

func newIngester(conn *sql.DB, cfg config.DictionaryConfig, logger *slog.Logger) (*ingest.Ingester, error) {
	var gen ingest.FuriganaGenerator
	if cfg.GenerateFurigana {
		a, err := reading.NewAnalyzer()
		if err != nil {
			return nil, fmt.Errorf("furigana analyzer: %w", err)
		}
		gen = a
	}

	ig := ingest.NewIngester(conn, gen)
	ig.Workers = cfg.Workers
	ig.BatchSize = cfg.BatchSize
	ig.Logger = logger.With("component", "ingest")
	ig.OnProgress = func(current, total int) {
		ig.Logger.Debug("import progress", slog.Int("current", current), slog.Int("total", total))
	}
	return ig, nil
}
