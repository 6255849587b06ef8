package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// WriteFunc performs database writes inside a batch transaction. tx is nil
// when the writer has no database.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// BatchWriter groups writes into transactions of up to size writes. A single
// committer goroutine applies them in submission order, which suits SQLite's
// single-writer model.
type BatchWriter struct {
	db   *sql.DB
	size int

	mu      sync.Mutex
	pending []WriteFunc
	closed  bool
	ticker  *time.Ticker

	queue  chan []WriteFunc
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// OnError is called for every failed or dropped batch.
	OnError func(error)
	// OnCommit is called from the committer after each successful batch
	// with the number of writes it held.
	OnCommit func(n int)

	batches atomic.Int64
	items   atomic.Int64

	errMu    sync.Mutex
	firstErr error
}

// NewBatchWriter starts a BatchWriter that commits whenever size writes are
// pending and, if interval > 0, on every tick.
func NewBatchWriter(conn *sql.DB, size int, interval time.Duration) *BatchWriter {
	if size <= 0 {
		size = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	bw := &BatchWriter{
		db:      conn,
		size:    size,
		pending: make([]WriteFunc, 0, size),
		queue:   make(chan []WriteFunc, 2),
		ctx:     ctx,
		cancel:  cancel,
	}

	bw.wg.Add(1)
	go bw.commitLoop()

	if interval > 0 {
		bw.ticker = time.NewTicker(interval)
		bw.wg.Add(1)
		go bw.tickLoop()
	}
	return bw
}

// Submit adds a write to the current batch. It blocks while the committer
// is two batches behind, and fails fast once any batch has failed.
func (bw *BatchWriter) Submit(w WriteFunc) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	if err := bw.Err(); err != nil {
		return err
	}
	bw.pending = append(bw.pending, w)
	if len(bw.pending) >= bw.size {
		bw.enqueueLocked()
	}
	return nil
}

// Err returns the first batch failure, if any.
func (bw *BatchWriter) Err() error {
	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.firstErr
}

// Committed returns the number of batches and writes committed so far.
func (bw *BatchWriter) Committed() (batches, items int64) {
	return bw.batches.Load(), bw.items.Load()
}

func (bw *BatchWriter) fail(err error) {
	bw.errMu.Lock()
	if bw.firstErr == nil {
		bw.firstErr = err
	}
	bw.errMu.Unlock()
	if bw.OnError != nil {
		bw.OnError(err)
	}
}

// enqueueLocked hands the pending writes to the committer. bw.mu must be held.
func (bw *BatchWriter) enqueueLocked() {
	if len(bw.pending) == 0 {
		return
	}
	batch := bw.pending
	bw.pending = make([]WriteFunc, 0, bw.size)

	dropped := fmt.Errorf("batch writer: dropping batch of %d writes after cancellation", len(batch))
	if bw.ctx.Err() != nil {
		bw.fail(dropped)
		return
	}
	select {
	case bw.queue <- batch:
	case <-bw.ctx.Done():
		bw.fail(dropped)
	}
}

func (bw *BatchWriter) commitLoop() {
	defer bw.wg.Done()
	for batch := range bw.queue {
		var err error
		if bw.db == nil {
			err = bw.apply(bw.ctx, nil, batch)
		} else {
			err = bw.commit(batch)
		}
		if err != nil {
			bw.fail(err)
			continue
		}
		bw.batches.Add(1)
		bw.items.Add(int64(len(batch)))
		if bw.OnCommit != nil {
			bw.OnCommit(len(batch))
		}
	}
}

func (bw *BatchWriter) apply(ctx context.Context, tx *sql.Tx, batch []WriteFunc) error {
	for _, w := range batch {
		if err := w(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

// commit runs one batch in its own transaction. Batches already queued when
// Close cancels bw.ctx still commit, so it uses a fresh context.
func (bw *BatchWriter) commit(batch []WriteFunc) error {
	ctx := context.Background()
	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if err := bw.apply(ctx, tx, batch); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch of %d writes: %w", len(batch), err)
	}
	return nil
}

func (bw *BatchWriter) tickLoop() {
	defer bw.wg.Done()
	for {
		select {
		case <-bw.ctx.Done():
			return
		case <-bw.ticker.C:
			bw.mu.Lock()
			if !bw.closed {
				bw.enqueueLocked()
			}
			bw.mu.Unlock()
		}
	}
}

// Close commits pending writes, stops the writer and returns the first
// batch failure.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if bw.ticker != nil {
		bw.ticker.Stop()
	}
	bw.enqueueLocked()
	bw.mu.Unlock()

	bw.cancel()
	close(bw.queue)
	bw.wg.Wait()

	return bw.Err()
}

// ErrBatchWriterClosed is returned by Submit and Close after Close.
var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

// BatchWriterError is the error type of the writer's own failures.
type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
