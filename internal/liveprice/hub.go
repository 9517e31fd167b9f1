package liveprice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/liveprice/internal/batcher"
	"github.com/rickgao/liveprice/internal/connection"
	"github.com/rickgao/liveprice/internal/model"
	"github.com/rickgao/liveprice/internal/router"
	"github.com/rickgao/liveprice/internal/subscription"
)

// ErrClosed is returned by Attach after Close.
var ErrClosed = errors.New("hub closed")

// View is what a consumer observes.
type View struct {
	Prices    model.PriceTable // Declared symbols, or every symbol for an empty set
	Connected bool
}

// Observer receives a consumer's view after every flush and connectivity
// change.
type Observer func(View)

// Deps are the optional collaborators of a Hub.
type Deps struct {
	Seed      SnapshotSource      // Bulk snapshot per session; nil skips seeding
	Scheduler batcher.Scheduler   // Flush timers; nil uses real timers
	Dialer    connection.DialFunc // Transport; nil uses the websocket client
	Logger    *slog.Logger

	// Tap sees every streamed quote in arrival order, before batching.
	// It runs on the routing goroutine and must not block.
	Tap func(model.PriceQuote)
}

// Stats aggregates component statistics.
type Stats struct {
	Consumers     int
	Connected     bool
	Seeds         int64
	SeedErrors    int64
	SeedsDropped  int64 // snapshots that arrived after their session ended
	Connection    connection.ManagerStats
	Router        router.Stats
	Batcher       batcher.Stats
	Subscriptions subscription.Stats
}

// Hub owns the shared connection and fans prices out to consumers.
type Hub struct {
	cfg    Config
	seed   SnapshotSource
	logger *slog.Logger

	conn    connection.Manager
	router  router.Router
	batcher *batcher.Batcher
	tracker *subscription.Tracker

	mu           sync.Mutex
	consumers    map[uuid.UUID]*Consumer
	connected    bool
	seeded       bool // seeding started for this session
	seedCancel   context.CancelFunc
	closed       bool
	seeds        int64
	seedErrors   int64
	seedsDropped int64

	// Serializes observer calls
	deliverMu sync.Mutex

	wg sync.WaitGroup
}

// New creates a hub. Nothing connects until the first Attach.
func New(cfg Config, deps Deps) (*Hub, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SeedTimeout <= 0 {
		cfg.SeedTimeout = DefaultConfig().SeedTimeout
	}

	h := &Hub{
		cfg:       cfg,
		seed:      deps.Seed,
		logger:    logger,
		consumers: make(map[uuid.UUID]*Consumer),
	}

	h.batcher = batcher.New(cfg.Batcher, deps.Scheduler, h.onFlush, logger)
	var sink router.QuoteSink = h.batcher
	if deps.Tap != nil {
		sink = tapSink{next: h.batcher, tap: deps.Tap}
	}
	h.router = router.NewRouter(cfg.Router, sink, logger)

	var opts []connection.ManagerOption
	if deps.Dialer != nil {
		opts = append(opts, connection.WithDialer(deps.Dialer))
	}
	h.conn = connection.NewManager(cfg.Connection, hubHandler{h}, logger, opts...)
	h.tracker = subscription.NewTracker(cfg.Subscription, h.conn, logger)

	if err := h.router.Start(context.Background()); err != nil {
		return nil, err
	}
	return h, nil
}

// Attach registers a consumer for symbols, ensures the connection is up and
// starts seeding if this is the first attach of the session.
func (h *Hub) Attach(symbols []string, observer Observer) (*Consumer, error) {
	c := &Consumer{
		id:       uuid.New(),
		hub:      h,
		observer: observer,
		symbols:  model.SymbolSet(symbols),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.consumers[c.id] = c
	startSeed := !h.seeded
	var session uint64
	if startSeed {
		h.seeded = true
		session = h.batcher.BeginSession()
	}
	h.mu.Unlock()

	h.tracker.Declare(c.id, symbols)
	state := h.conn.Ensure()

	h.logger.Debug("consumer attached",
		"consumer", c.id,
		"symbols", len(c.symbols),
		"state", state,
	)

	if startSeed {
		h.startSeed(session)
	}

	h.deliverTo(c)
	return c, nil
}

// Disconnect tears the shared connection down and notifies every consumer.
// The next Attach starts a new session.
func (h *Hub) Disconnect() {
	h.mu.Lock()
	cancel := h.seedCancel
	h.seedCancel = nil
	h.seeded = false
	h.batcher.EndSession()
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	h.conn.Disconnect()
	h.router.Drain()
	h.batcher.Flush()
}

// Close disconnects and stops the router and batcher. Attach fails afterwards.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.Disconnect()
	h.conn.Close()
	h.wg.Wait()

	err := h.router.Stop(ctx)
	h.batcher.Close()

	h.logger.Info("live price hub closed")
	return err
}

// Price returns the latest published quote for a symbol.
func (h *Hub) Price(symbol string) (model.PriceQuote, bool) {
	return h.batcher.Quote(symbol)
}

// Table returns a copy of the full published table.
func (h *Hub) Table() model.PriceTable {
	return h.batcher.Table()
}

// Connected reports the connectivity flag delivered to consumers.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

// State returns the connection state.
func (h *Hub) State() connection.State {
	return h.conn.State()
}

// Stats returns aggregated statistics.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	s := Stats{
		Consumers:    len(h.consumers),
		Connected:    h.connected,
		Seeds:        h.seeds,
		SeedErrors:   h.seedErrors,
		SeedsDropped: h.seedsDropped,
	}
	h.mu.Unlock()

	s.Connection = h.conn.Stats()
	s.Router = h.router.Stats()
	s.Batcher = h.batcher.Stats()
	s.Subscriptions = h.tracker.Stats()
	return s
}

// startSeed fetches the session snapshot in the background. The result is
// dropped if the session ends before it arrives.
func (h *Hub) startSeed(session uint64) {
	if h.seed == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SeedTimeout)
	h.mu.Lock()
	h.seedCancel = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer cancel()

		start := time.Now()
		quotes, err := h.seed.Snapshot(ctx)
		if err != nil {
			h.mu.Lock()
			h.seedErrors++
			h.mu.Unlock()
			h.logger.Debug("snapshot seed failed, using stream only", "error", err)
			return
		}
		n, err := 0, ctx.Err()
		if err == nil {
			n, err = h.batcher.SeedSession(session, quotes)
		}
		if err != nil {
			h.mu.Lock()
			h.seedsDropped++
			h.mu.Unlock()
			h.logger.Debug("snapshot seed discarded", "error", err)
			return
		}

		h.mu.Lock()
		h.seeds++
		h.mu.Unlock()
		h.logger.Info("seeded price table",
			"quotes", len(quotes),
			"applied", n,
			"duration", time.Since(start),
		)
	}()
}

// onFlush delivers a published table to every consumer.
func (h *Hub) onFlush(table model.PriceTable, _ []string) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	connected := h.Connected()
	for _, c := range h.snapshotConsumers() {
		c.deliver(table, connected)
	}
}

// notifyAll delivers the current table with the current connectivity.
func (h *Hub) notifyAll() {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	table := h.batcher.Table()
	connected := h.Connected()
	for _, c := range h.snapshotConsumers() {
		c.deliver(table, connected)
	}
}

// deliverTo delivers the current view to one consumer.
func (h *Hub) deliverTo(c *Consumer) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	c.deliver(h.batcher.Table(), h.Connected())
}

func (h *Hub) snapshotConsumers() []*Consumer {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Consumer, 0, len(h.consumers))
	for _, c := range h.consumers {
		out = append(out, c)
	}
	return out
}

func (h *Hub) detach(c *Consumer) {
	// Everything received so far reaches this consumer before it leaves
	h.router.Drain()
	if !h.batcher.Flush() {
		h.deliverTo(c)
	}

	h.mu.Lock()
	delete(h.consumers, c.id)
	remaining := len(h.consumers)
	h.mu.Unlock()

	h.tracker.Remove(c.id)
	h.logger.Debug("consumer detached", "consumer", c.id, "remaining", remaining)
}

func (h *Hub) setConnected(v bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connected == v {
		return false
	}
	h.connected = v
	return true
}

// hubHandler receives connection events without exposing them on Hub.
type hubHandler struct {
	h *Hub
}

func (a hubHandler) HandleState(s connection.State) {
	h := a.h
	if s == connection.StateConnected {
		h.tracker.Resume()
		if h.setConnected(true) {
			h.notifyAll()
		}
		return
	}

	h.tracker.Suspend()
	if h.setConnected(false) {
		h.notifyAll()
	}
}

func (a hubHandler) HandleMessage(msg connection.TimestampedMessage) {
	a.h.router.Enqueue(msg)
}

// tapSink forwards quotes to the batcher and a side observer.
type tapSink struct {
	next router.QuoteSink
	tap  func(model.PriceQuote)
}

func (s tapSink) Add(q model.PriceQuote) {
	s.next.Add(q)
	s.tap(q)
}
