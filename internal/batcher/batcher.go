package batcher

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/liveprice/internal/model"
)

var (
	// ErrClosed is returned when seeding a closed batcher.
	ErrClosed = errors.New("batcher closed")
	// ErrStaleSession is returned when seeding for a session that has ended.
	ErrStaleSession = errors.New("batcher: stale session")
)

// FlushFunc receives the new table and the symbols that changed, sorted.
// The table is shared and must be treated as read-only.
type FlushFunc func(table model.PriceTable, changed []string)

// Config holds batcher configuration.
type Config struct {
	Window time.Duration // Delay between first pending update and flush (default: 200ms)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Window: 200 * time.Millisecond}
}

// Stats contains batcher statistics.
type Stats struct {
	Received  int64 // Streamed quotes accepted
	Coalesced int64 // Quotes overwritten while pending
	Rejected  int64 // Quotes dropped after Close
	Flushes   int64
	Seeded    int64 // Seed quotes applied
	Pending   int
	Symbols   int
}

// Batcher buffers quotes and publishes merged tables.
type Batcher struct {
	cfg     Config
	sched   Scheduler
	onFlush FlushFunc
	logger  *slog.Logger

	// Serializes publication so callbacks see tables in order
	flushMu sync.Mutex

	mu       sync.Mutex
	pending  map[string]model.PriceQuote
	table    model.PriceTable
	streamed map[string]struct{} // symbols ever set by a streamed quote
	session  uint64
	timer    Timer
	timerSeq uint64
	closed   bool
	stats    Stats
}

// New creates a batcher. A nil scheduler uses RealScheduler.
func New(cfg Config, sched Scheduler, onFlush FlushFunc, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	if sched == nil {
		sched = RealScheduler{}
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}

	return &Batcher{
		cfg:      cfg,
		sched:    sched,
		onFlush:  onFlush,
		logger:   logger.With("component", "batcher"),
		pending:  make(map[string]model.PriceQuote),
		table:    make(model.PriceTable),
		streamed: make(map[string]struct{}),
	}
}

// Add buffers a streamed quote and schedules a flush if none is pending.
func (b *Batcher) Add(q model.PriceQuote) {
	q.Symbol = model.NormalizeSymbol(q.Symbol)
	if q.Symbol == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.stats.Rejected++
		return
	}

	if _, ok := b.pending[q.Symbol]; ok {
		b.stats.Coalesced++
	}
	b.pending[q.Symbol] = q
	b.streamed[q.Symbol] = struct{}{}
	b.stats.Received++

	if b.timer == nil {
		b.timerSeq++
		seq := b.timerSeq
		b.timer = b.sched.AfterFunc(b.cfg.Window, func() { b.timerFlush(seq) })
	}
}

// Seed applies bulk defaults for symbols no streamed quote has touched, then
// publishes the table. Returns the number of quotes applied.
func (b *Batcher) Seed(quotes []model.PriceQuote) (int, error) {
	return b.seed(quotes, false, 0)
}

// SeedSession is Seed bound to the session returned by BeginSession. Once
// that session has ended or been replaced it returns ErrStaleSession and
// leaves the table alone.
func (b *Batcher) SeedSession(session uint64, quotes []model.PriceQuote) (int, error) {
	return b.seed(quotes, true, session)
}

func (b *Batcher) seed(quotes []model.PriceQuote, bound bool, session uint64) (int, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, ErrClosed
	}
	if bound && session != b.session {
		b.mu.Unlock()
		return 0, ErrStaleSession
	}

	var next model.PriceTable
	var changed []string
	for _, q := range quotes {
		q.Symbol = model.NormalizeSymbol(q.Symbol)
		if q.Symbol == "" {
			continue
		}
		if _, ok := b.streamed[q.Symbol]; ok {
			continue
		}
		if next == nil {
			next = b.table.Clone()
		}
		next[q.Symbol] = q
		changed = append(changed, q.Symbol)
	}

	if next == nil {
		b.mu.Unlock()
		return 0, nil
	}

	b.table = next
	b.stats.Seeded += int64(len(changed))
	b.mu.Unlock()

	sort.Strings(changed)
	b.logger.Debug("seeded table", "symbols", len(changed))
	b.publish(next, changed)
	return len(changed), nil
}

// Flush cancels any scheduled flush and publishes pending quotes now.
// Returns false if nothing was pending.
func (b *Batcher) Flush() bool {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	return b.flushLocked(0)
}

// Close flushes pending quotes and rejects further updates.
func (b *Batcher) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.Flush()
}

// Table returns a copy of the latest published table.
func (b *Batcher) Table() model.PriceTable {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table.Clone()
}

// Quote returns the latest published quote for a symbol.
func (b *Batcher) Quote(symbol string) (model.PriceQuote, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.table[model.NormalizeSymbol(symbol)]
	return q, ok
}

// BeginSession forgets which symbols were streamed, so the next Seed may
// refresh them. The table itself is kept. Returns the new session id.
func (b *Batcher) BeginSession() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed = make(map[string]struct{})
	b.session++
	return b.session
}

// EndSession invalidates the current session so late seeds are refused.
func (b *Batcher) EndSession() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session++
}

// Stats returns current statistics.
func (b *Batcher) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stats
	s.Pending = len(b.pending)
	s.Symbols = len(b.table)
	return s
}

// timerFlush runs on the scheduler. Stale timers are ignored.
func (b *Batcher) timerFlush(seq uint64) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	b.flushLocked(seq)
}

// flushLocked merges pending into a new table. A non-zero seq must match the
// current timer. Caller holds flushMu.
func (b *Batcher) flushLocked(seq uint64) bool {
	b.mu.Lock()
	if seq != 0 && seq != b.timerSeq {
		b.mu.Unlock()
		return false
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return false
	}

	pending := b.pending
	b.pending = make(map[string]model.PriceQuote, len(pending))

	next := b.table.Clone()
	changed := make([]string, 0, len(pending))
	for sym, q := range pending {
		next[sym] = q
		changed = append(changed, sym)
	}
	b.table = next
	b.stats.Flushes++
	b.mu.Unlock()

	sort.Strings(changed)
	b.publish(next, changed)
	return true
}

func (b *Batcher) publish(table model.PriceTable, changed []string) {
	if b.onFlush != nil {
		b.onFlush(table, changed)
	}
}
