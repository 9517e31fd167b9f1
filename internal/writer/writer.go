package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/liveprice/internal/model"
	"github.com/rickgao/liveprice/internal/router"
)

// Sink receives batches of quotes.
type Sink interface {
	Write(ctx context.Context, quotes []model.PriceQuote) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, quotes []model.PriceQuote) error

// Write implements Sink.
func (f SinkFunc) Write(ctx context.Context, quotes []model.PriceQuote) error {
	return f(ctx, quotes)
}

// Config holds batching settings.
type Config struct {
	Name          string // Used in logs
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration // Per flush; 0 uses FlushInterval*5
}

// DefaultConfig returns the default writer configuration.
func DefaultConfig() Config {
	return Config{
		Name:          "quotes",
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// Metrics holds writer statistics.
type Metrics struct {
	Received int64
	Written  int64
	Errors   int64
	Flushes  int64
	Dropped  int64 // Submitted after Stop
}

// QuoteWriter batches quotes into a Sink.
type QuoteWriter struct {
	cfg    Config
	sink   Sink
	logger *slog.Logger

	input *router.Queue[model.PriceQuote]

	batch   []model.PriceQuote
	batchMu sync.Mutex
	flushMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metricsMu sync.Mutex
	metrics   Metrics
}

// NewQuoteWriter creates a writer. Call Start before submitting.
func NewQuoteWriter(cfg Config, sink Sink, logger *slog.Logger) *QuoteWriter {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = cfg.FlushInterval * 5
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteWriter{
		cfg:    cfg,
		sink:   sink,
		logger: logger.With("component", "writer", "writer", cfg.Name),
		input:  router.NewQueue[model.PriceQuote](cfg.BatchSize),
		batch:  make([]model.PriceQuote, 0, cfg.BatchSize),
	}
}

// Submit queues a quote. It never blocks; quotes submitted after Stop
// are counted as dropped.
func (w *QuoteWriter) Submit(q model.PriceQuote) {
	ok := w.input.Push(q)

	w.metricsMu.Lock()
	if ok {
		w.metrics.Received++
	} else {
		w.metrics.Dropped++
	}
	w.metricsMu.Unlock()
}

// Start begins consuming submitted quotes.
func (w *QuoteWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("quote writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop closes the input, waits for the loops and flushes what is left.
func (w *QuoteWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping quote writer")

	w.input.Close()
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
	case <-ctx.Done():
		w.logger.Warn("quote writer stop timed out")
	}

	// Anything the consume loop did not reach
	w.append(w.input.DrainTo(0))
	w.flush(ctx)

	w.logger.Info("quote writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *QuoteWriter) Stats() Metrics {
	w.metricsMu.Lock()
	defer w.metricsMu.Unlock()
	return w.metrics
}

// consumeLoop moves queued quotes into the batch until the input closes.
func (w *QuoteWriter) consumeLoop() {
	defer w.wg.Done()

	for w.input.Wait() {
		if w.append(w.input.DrainTo(w.cfg.BatchSize)) {
			w.flush(w.ctx)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *QuoteWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// append adds quotes to the batch and reports whether it is full.
func (w *QuoteWriter) append(quotes []model.PriceQuote) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()

	w.batch = append(w.batch, quotes...)
	return len(w.batch) >= w.cfg.BatchSize
}

// flush writes the current batch to the sink.
func (w *QuoteWriter) flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]model.PriceQuote, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if ctx.Err() != nil {
		// Stopping: the final flush still gets a bounded write
		ctx = context.WithoutCancel(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, w.cfg.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := w.sink.Write(ctx, batch)

	w.metricsMu.Lock()
	if err != nil {
		w.metrics.Errors++
	} else {
		w.metrics.Written += int64(len(batch))
		w.metrics.Flushes++
	}
	w.metricsMu.Unlock()

	if err != nil {
		w.logger.Error("batch write failed", "error", err, "count", len(batch))
		return
	}
	w.logger.Debug("flushed quotes",
		"count", len(batch),
		"duration", time.Since(start),
	)
}
