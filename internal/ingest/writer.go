package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkorzen/poly-pnl/internal/model"
)

// WriterConfig holds batch writer configuration.
type WriterConfig struct {
	BatchSize     int           // Rows per CopyFrom batch
	FlushInterval time.Duration // Max time a row waits before flushing
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     1000,
		FlushInterval: time.Second,
	}
}

// WriterMetrics tracks writer throughput.
type WriterMetrics struct {
	RowsWritten    int64
	BatchesWritten int64
	WriteErrors    int64
}

// Writer consumes raw events from a Buffer and appends them to the
// raw_events table in batches. Append-only: duplicates are persisted as-is
// and collapsed later by Deduplicate, so a backfill re-run is always safe.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *Buffer[model.RawEvent]
	db    *pgxpool.Pool

	batch   []model.RawEvent
	batchMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewWriter creates a batch writer.
func NewWriter(cfg WriterConfig, input *Buffer[model.RawEvent], db *pgxpool.Pool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]model.RawEvent, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing batches.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("event writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains and shuts down the writer.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping event writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("event writer stopped")
	case <-ctx.Done():
		w.logger.Warn("event writer stop timed out")
	}

	// Final flush of whatever is still buffered. The loops may outlive a
	// timed-out stop (flush blocks on CopyFrom), so the drain goes through
	// the batch lock like any other append.
	w.appendBatch(w.input.Drain(0))
	w.flush()
	return nil
}

// Stats returns current throughput counters.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		events := w.input.Drain(w.cfg.BatchSize)
		if len(events) == 0 {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		if w.appendBatch(events) {
			w.flush()
		}
	}
}

// appendBatch adds events to the pending batch and reports whether it
// reached the configured batch size.
func (w *Writer) appendBatch(events []model.RawEvent) bool {
	if len(events) == 0 {
		return false
	}
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, events...)
	return len(w.batch) >= w.cfg.BatchSize
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Writer) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]model.RawEvent, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()
	_, err := w.db.CopyFrom(
		context.Background(),
		pgx.Identifier{"raw_events"},
		[]string{"source_id", "wallet", "market_id", "outcome", "token_amount", "cash_amount", "ts", "kind"},
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			ev := batch[i]
			return []any{ev.SourceID, ev.Wallet, ev.RawMarketID, ev.Outcome,
				ev.TokenAmount, ev.CashAmount, ev.Timestamp, string(ev.Kind)}, nil
		}),
	)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	if err != nil {
		w.metrics.WriteErrors++
		w.logger.Error("event batch write failed", "rows", len(batch), "error", err)
		return
	}
	w.metrics.RowsWritten += int64(len(batch))
	w.metrics.BatchesWritten++
	w.logger.Debug("event batch written",
		"rows", len(batch),
		"duration", time.Since(start),
	)
}
