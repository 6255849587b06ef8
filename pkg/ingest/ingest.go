// Package ingest imports dictionary files into the SQLite store. Per-entry
// preparation runs on a worker pool; writes go through a BatchWriter and
// record progress so an interrupted import resumes where it stopped.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/japaniel/kotoba/pkg/db"
	"github.com/japaniel/kotoba/pkg/dictionary"
	"github.com/japaniel/kotoba/pkg/tags"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// FuriganaGenerator derives furigana for a headword that has none.
type FuriganaGenerator interface {
	Furigana(term, reading string) ([]dictionary.FuriganaSegment, bool)
}

// Ingester writes dictionary files into the database.
type Ingester struct {
	DB *sql.DB
	// Generator fills in furigana missing from the imported furigana files.
	// nil disables generation.
	Generator FuriganaGenerator
	BatchSize int
	// Logger receives import progress. nil means no logging.
	Logger *slog.Logger
	// OnProgress is called after every committed batch with the number of
	// entries of the current source committed so far and its total.
	OnProgress func(current, total int)

	// Concurrency settings
	Workers int

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface

	seenOnce sync.Once
	seenMu   sync.Mutex
	seen     map[furiganaKey]struct{}
}

type furiganaKey struct{ term, reading string }

// NewIngester creates a new Ingester.
func NewIngester(conn *sql.DB, gen FuriganaGenerator) *Ingester {
	return &Ingester{
		DB:        conn,
		Generator: gen,
		BatchSize: 500,
		Workers:   4,
	}
}

// Report summarises an Import.
type Report struct {
	Sources   int
	Skipped   int
	Tags      int
	Entries   int
	Furigana  int
	Generated int
	Warnings  []error
}

func (ig *Ingester) logger() *slog.Logger {
	if ig.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return ig.Logger
}

// Import writes every file in src. Tags and furigana go first so that
// imported furigana takes precedence over generated furigana. A file that
// cannot be parsed is skipped with a warning; database failures and
// cancellation abort the import.
func (ig *Ingester) Import(ctx context.Context, src dictionary.Sources) (Report, error) {
	var rep Report
	log := ig.logger()

	warn := func(path string, err error) {
		log.Warn("dictionary source skipped", slog.String("path", path), slog.Any("error", err))
		rep.Warnings = append(rep.Warnings, &dictionary.LoadWarning{Path: path, Err: err})
	}

	type entryFile struct {
		kind, path string
		entries    []dictionary.Entry
	}
	var entryFiles []entryFile

	for _, path := range src.TagBanks {
		defs, err := dictionary.ReadTagBank(path)
		if err != nil {
			warn(path, err)
			continue
		}
		n, err := ig.IngestTags(ctx, db.KindTagBank, path, defs)
		if err != nil {
			return rep, err
		}
		rep.count(n, &rep.Tags)
	}

	for _, path := range src.JMdict {
		entries, defs, err := dictionary.ReadJMdict(path)
		if err != nil {
			warn(path, err)
			continue
		}
		n, err := ig.IngestTags(ctx, db.KindJMdictTags, path+"#tags", defs)
		if err != nil {
			return rep, err
		}
		rep.count(n, &rep.Tags)
		entryFiles = append(entryFiles, entryFile{db.KindJMdict, path, entries})
	}

	for _, path := range src.Furigana {
		items, err := dictionary.ReadFurigana(path)
		if err != nil {
			warn(path, err)
			continue
		}
		n, err := ig.IngestFurigana(ctx, path, items)
		if err != nil {
			return rep, err
		}
		rep.count(n, &rep.Furigana)
	}

	for _, path := range src.TermBanks {
		entries, err := dictionary.ReadTermBank(path)
		if err != nil {
			warn(path, err)
			continue
		}
		entryFiles = append(entryFiles, entryFile{db.KindTermBank, path, entries})
	}

	for _, f := range entryFiles {
		sourceID, err := db.CreateOrGetSource(ig.DB, f.kind, f.path, len(f.entries))
		if err != nil {
			return rep, err
		}
		before := ig.generatedCount()
		n, err := ig.Ingest(ctx, sourceID, f.entries)
		rep.Generated += ig.generatedCount() - before
		rep.Entries += n
		if err != nil {
			return rep, fmt.Errorf("import %s: %w", f.path, err)
		}
		if n == 0 {
			rep.Skipped++
		} else {
			rep.Sources++
		}
		log.Info("source imported", slog.String("path", f.path), slog.Int("entries", n))
	}

	log.Info("import finished",
		slog.Int("sources", rep.Sources),
		slog.Int("skipped", rep.Skipped),
		slog.Int("entries", rep.Entries),
		slog.Int("tags", rep.Tags),
		slog.Int("furigana", rep.Furigana),
		slog.Int("generated", rep.Generated),
		slog.Int("warnings", len(rep.Warnings)),
	)
	return rep, nil
}

// count adds n to field and tracks whether the source did any work.
func (r *Report) count(n int, field *int) {
	*field += n
	if n == 0 {
		r.Skipped++
	} else {
		r.Sources++
	}
}

// IngestTags writes tag definitions from one file in a single transaction.
// It returns 0 when the file was already imported.
func (ig *Ingester) IngestTags(ctx context.Context, kind, path string, defs []tags.Definition) (int, error) {
	sourceID, err := db.CreateOrGetSource(ig.DB, kind, path, len(defs))
	if err != nil {
		return 0, err
	}
	done, err := db.GetSourceProgress(ig.DB, sourceID)
	if err == nil && done >= len(defs) {
		return 0, nil
	}

	tx, err := ig.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()
	for _, d := range defs {
		if err := db.InsertTag(tx, d); err != nil {
			return 0, err
		}
	}
	if err := db.UpdateSourceProgress(tx, sourceID, len(defs)); err != nil {
		return 0, fmt.Errorf("failed to save progress: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(defs), nil
}

// IngestFurigana writes furigana annotations from one file in batches.
func (ig *Ingester) IngestFurigana(ctx context.Context, path string, items []dictionary.FuriganaEntry) (int, error) {
	sourceID, err := db.CreateOrGetSource(ig.DB, db.KindFurigana, path, len(items))
	if err != nil {
		return 0, err
	}
	start, err := db.GetSourceProgress(ig.DB, sourceID)
	if err != nil {
		start = 0
	}
	if start >= len(items) {
		return 0, nil
	}

	bw := NewBatchWriter(ig.DB, ig.batchSize(), 0)
	var written atomic.Int64
	for i := start; i < len(items); i++ {
		if err := ctx.Err(); err != nil {
			_ = bw.Close()
			return int(written.Load()), err
		}
		idx, item := i, items[i]
		err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			if err := db.InsertFurigana(tx, item); err != nil {
				return err
			}
			if err := db.UpdateSourceProgress(tx, sourceID, idx+1); err != nil {
				return fmt.Errorf("failed to save progress: %w", err)
			}
			written.Add(1)
			return nil
		})
		if err != nil {
			_ = bw.Close()
			return int(written.Load()), err
		}
		ig.claim(item.Term, item.Reading)
	}
	err = bw.Close()
	return int(written.Load()), err
}

// processedEntry holds the result of preparing an entry before DB ingestion
type processedEntry struct {
	Index    int
	Entry    dictionary.Entry
	Furigana *dictionary.FuriganaEntry
}

// Ingest writes entries for a source using concurrent workers and batched
// writes, resuming after the last committed entry. It returns the number of
// entries written by this call.
func (ig *Ingester) Ingest(ctx context.Context, sourceID int64, entries []dictionary.Entry) (int, error) {
	log := ig.logger()

	start, err := db.GetSourceProgress(ig.DB, sourceID)
	if err != nil {
		log.Warn("failed to retrieve progress", slog.Int64("source_id", sourceID), slog.Any("error", err))
		start = 0
	}
	total := len(entries)
	if start >= total {
		return 0, nil
	}
	if start > 0 {
		log.Info("resuming import", slog.Int64("source_id", sourceID), slog.Int("skipped", start))
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ig.loadSeen()

	workers := ig.Workers
	if workers <= 0 {
		workers = 1
	}
	var wp WorkerPoolInterface
	if ig.PoolFactory != nil {
		wp = ig.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}
	resultCh := make(chan processedEntry, workers*2)
	doneCh := make(chan error, 1)

	var written atomic.Int64
	bw := NewBatchWriter(ig.DB, ig.batchSize(), 100*time.Millisecond)
	bw.OnCommit = func(n int) {
		done := start + int(written.Add(int64(n)))
		if ig.OnProgress != nil {
			ig.OnProgress(done, total)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp.Start(ctx)

	// Consumer: restore input order and hand writes to the batch writer.
	go func() {
		defer close(doneCh)
		pending := make(map[int]processedEntry)
		next := start
		var failed error

		for res := range resultCh {
			if failed != nil {
				continue
			}
			pending[res.Index] = res
			for {
				item, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if err := bw.Submit(ig.writeEntry(sourceID, item)); err != nil {
					failed = err
					cancel()
					break
				}
				next++
			}
		}
		if failed == nil && next < total {
			failed = ctx.Err()
		}
		doneCh <- failed
	}()

	// Producer: one preparation job per entry.
	var submitErr error
	for i := start; i < total; i++ {
		if ctx.Err() != nil {
			break
		}
		idx := i
		job := func(ctx context.Context) error {
			res := ig.prepare(idx, entries[idx])
			select {
			case resultCh <- res:
			case <-ctx.Done():
			}
			return nil
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrPoolClosed) {
				break
			}
			submitErr = err
			cancel()
			break
		}
	}

	// Workers have exited once Close returns, so nothing sends on resultCh.
	wp.Close()
	close(resultCh)

	consumerErr := <-doneCh
	if err := bw.Close(); err != nil && consumerErr == nil {
		consumerErr = err
	}
	if submitErr != nil {
		return int(written.Load()), submitErr
	}
	return int(written.Load()), consumerErr
}

func (ig *Ingester) writeEntry(sourceID int64, item processedEntry) WriteFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		if _, err := db.InsertEntry(tx, item.Entry, sourceID); err != nil {
			return fmt.Errorf("failed to persist entry %s: %w", item.Entry.Term, err)
		}
		if item.Furigana != nil {
			if err := db.InsertFurigana(tx, *item.Furigana); err != nil {
				return err
			}
		}
		// Progress commits with the entry, so a rolled back batch is retried on resume.
		if err := db.UpdateSourceProgress(tx, sourceID, item.Index+1); err != nil {
			return fmt.Errorf("failed to save progress: %w", err)
		}
		return nil
	}
}

// prepare performs the CPU-heavy per-entry work.
func (ig *Ingester) prepare(index int, e dictionary.Entry) processedEntry {
	res := processedEntry{Index: index, Entry: e}
	if ig.Generator == nil || !ig.claim(e.Term, e.Reading) {
		return res
	}
	if segs, ok := ig.Generator.Furigana(e.Term, e.Reading); ok {
		res.Furigana = &dictionary.FuriganaEntry{Term: e.Term, Reading: e.Reading, Segments: segs}
	}
	return res
}

// claim reports whether term and reading have no furigana yet, marking
// them as taken.
func (ig *Ingester) claim(term, reading string) bool {
	ig.seenMu.Lock()
	defer ig.seenMu.Unlock()
	if ig.seen == nil {
		ig.seen = make(map[furiganaKey]struct{})
	}
	k := furiganaKey{term, reading}
	if _, ok := ig.seen[k]; ok {
		return false
	}
	ig.seen[k] = struct{}{}
	return true
}

// loadSeen marks furigana already in the database so it is not generated
// again.
func (ig *Ingester) loadSeen() {
	ig.seenOnce.Do(func() {
		if ig.Generator == nil {
			return
		}
		existing, err := db.LoadFurigana(ig.DB)
		if err != nil {
			ig.logger().Warn("failed to load existing furigana", slog.Any("error", err))
			return
		}
		for _, f := range existing {
			ig.claim(f.Term, f.Reading)
		}
	})
}

func (ig *Ingester) generatedCount() int {
	if ig.Generator == nil {
		return 0
	}
	n, err := db.CountFurigana(ig.DB)
	if err != nil {
		return 0
	}
	return n
}

func (ig *Ingester) batchSize() int {
	if ig.BatchSize <= 0 {
		return 50
	}
	return ig.BatchSize
}
