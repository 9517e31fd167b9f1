package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/liveprice/internal/connection"
	"github.com/rickgao/liveprice/internal/model"
)

// ErrMissingField is returned for payloads without a required field.
var ErrMissingField = errors.New("missing required field")

// QuoteSink receives decoded quotes in arrival order.
type QuoteSink interface {
	Add(model.PriceQuote)
}

// Router decodes inbound frames and routes quotes to a sink.
type Router interface {
	// Start begins routing queued frames.
	Start(ctx context.Context) error

	// Stop closes the queue, routes what is left and waits for the loop.
	Stop(ctx context.Context) error

	// Enqueue appends a frame. Returns false after Stop.
	Enqueue(msg connection.TimestampedMessage) bool

	// Drain synchronously routes every queued frame and returns the count.
	Drain() int

	// Stats returns current router statistics.
	Stats() Stats
}

// router is the internal implementation.
type router struct {
	cfg    Config
	sink   QuoteSink
	logger *slog.Logger

	queue *Queue[connection.TimestampedMessage]

	// Held while popping and routing so the loop and Drain never reorder
	routeMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	stats Stats
}

// NewRouter creates a new Router feeding sink.
func NewRouter(cfg Config, sink QuoteSink, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}

	return &router{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		queue:  NewQueue[connection.TimestampedMessage](cfg.QueueSize),
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(2)
	go r.routeLoop()
	go func() {
		defer r.wg.Done()
		<-r.ctx.Done()
		r.queue.Close()
	}()

	r.logger.Info("message router started", "queue_size", r.cfg.QueueSize)
	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	r.queue.Close()
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
		return ctx.Err()
	}

	// Anything pushed before Close but not yet routed
	r.Drain()
	return nil
}

// Enqueue appends a frame to the routing queue.
func (r *router) Enqueue(msg connection.TimestampedMessage) bool {
	if !r.queue.Push(msg) {
		return false
	}
	r.mu.Lock()
	r.stats.MessagesReceived++
	r.mu.Unlock()
	return true
}

// Drain routes everything queued on the caller's goroutine.
func (r *router) Drain() int {
	r.routeMu.Lock()
	defer r.routeMu.Unlock()

	n := 0
	for {
		msg, ok := r.queue.Pop()
		if !ok {
			return n
		}
		r.route(msg)
		n++
	}
}

// Stats returns current statistics.
func (r *router) Stats() Stats {
	r.mu.RLock()
	s := r.stats
	r.mu.RUnlock()

	s.Queue = r.queue.Stats()
	return s
}

// routeLoop is the main routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for r.queue.Wait() {
		r.routeMu.Lock()
		if msg, ok := r.queue.Pop(); ok {
			r.route(msg)
		}
		r.routeMu.Unlock()
	}
}

// route decodes a single frame. Failures are counted and the frame dropped.
func (r *router) route(msg connection.TimestampedMessage) {
	var env connection.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		r.parseError("envelope", err)
		return
	}

	switch env.Event {
	case connection.EventPriceUpdate:
		q, err := parsePriceUpdate(env.Data, msg.ReceivedAt)
		if err != nil {
			r.parseError(env.Event, err)
			return
		}
		r.deliver(q)

	case connection.EventSubscribed:
		q, ok, err := parseSubscribed(env.Data, msg.ReceivedAt)
		if err != nil {
			r.parseError(env.Event, err)
			return
		}
		if !ok {
			r.logger.Debug("subscription acknowledged", "payload", string(env.Data))
			return
		}
		r.deliver(q)

	case connection.EventStockList:
		r.logger.Debug("available symbols", "payload", string(env.Data))

	case connection.EventError:
		r.mu.Lock()
		r.stats.ServerErrors++
		r.mu.Unlock()
		r.logger.Warn("server reported error", "payload", string(env.Data))

	default:
		r.mu.Lock()
		r.stats.UnknownMessages++
		r.mu.Unlock()
		r.logger.Debug("unknown event", "event", env.Event)
	}
}

func (r *router) deliver(q model.PriceQuote) {
	if r.sink != nil {
		r.sink.Add(q)
	}
	r.mu.Lock()
	r.stats.QuotesRouted++
	r.mu.Unlock()
}

func (r *router) parseError(event string, err error) {
	r.mu.Lock()
	r.stats.ParseErrors++
	r.mu.Unlock()
	r.logger.Warn("failed to parse message", "event", event, "error", err)
}

// parsePriceUpdate decodes a priceUpdate payload.
func parsePriceUpdate(data json.RawMessage, receivedAt time.Time) (model.PriceQuote, error) {
	var w quoteWire
	if err := json.Unmarshal(data, &w); err != nil {
		return model.PriceQuote{}, err
	}
	return w.toQuote(w.Symbol, receivedAt)
}

// parseSubscribed decodes a subscribed payload. A bare string is an
// acknowledgement and yields ok=false; an object with data carries a quote.
func parseSubscribed(data json.RawMessage, receivedAt time.Time) (model.PriceQuote, bool, error) {
	var ack string
	if err := json.Unmarshal(data, &ack); err == nil {
		return model.PriceQuote{}, false, nil
	}

	var w subscribedWire
	if err := json.Unmarshal(data, &w); err != nil {
		return model.PriceQuote{}, false, err
	}
	if w.Data == nil {
		return model.PriceQuote{}, false, nil
	}

	symbol := w.Symbol
	if symbol == "" {
		symbol = w.Data.Symbol
	}
	q, err := w.Data.toQuote(symbol, receivedAt)
	if err != nil {
		return model.PriceQuote{}, false, err
	}
	return q, true, nil
}

func (w quoteWire) toQuote(symbol string, receivedAt time.Time) (model.PriceQuote, error) {
	sym := model.NormalizeSymbol(symbol)
	if sym == "" {
		return model.PriceQuote{}, fmt.Errorf("symbol: %w", ErrMissingField)
	}
	if w.Price == nil {
		return model.PriceQuote{}, fmt.Errorf("%s price: %w", sym, ErrMissingField)
	}

	observed := w.Timestamp.Time
	if observed.IsZero() || observed.UnixMilli() == 0 {
		observed = receivedAt
	}

	return model.PriceQuote{
		Symbol:     sym,
		Price:      *w.Price,
		Change:     w.Change,
		High:       w.High,
		Low:        w.Low,
		ObservedAt: observed,
	}, nil
}
