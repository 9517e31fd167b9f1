package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/liveprice/internal/model"
)

// PortfolioSource fetches the current portfolio. *api.Client satisfies it.
type PortfolioSource interface {
	GetPortfolio(ctx context.Context) (*model.Portfolio, error)
}

// PriceSource looks up live quotes. *liveprice.Hub satisfies it.
type PriceSource interface {
	Price(symbol string) (model.PriceQuote, bool)
}

// Handler receives each revalued portfolio.
type Handler interface {
	HandlePortfolio(p model.Portfolio)
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(model.Portfolio)

func (f HandlerFunc) HandlePortfolio(p model.Portfolio) {
	f(p)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 30s)
	Timeout  time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Stats holds poller counters.
type Stats struct {
	Polls    int64
	Errors   int64
	LastPoll time.Time
	Holdings int
}

// Poller periodically fetches and revalues the portfolio.
type Poller struct {
	cfg     Config
	source  PortfolioSource
	prices  PriceSource
	handler Handler
	logger  *slog.Logger

	mu     sync.Mutex
	latest *model.Portfolio
	stats  Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. handler may be nil.
func New(cfg Config, source PortfolioSource, prices PriceSource, handler Handler, logger *slog.Logger) *Poller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		prices:  prices,
		handler: handler,
		logger:  logger.With("component", "portfolio_poller"),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("portfolio poller started", "interval", p.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("portfolio poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latest returns the most recent valuation, revalued at current prices.
func (p *Poller) Latest() (model.Portfolio, bool) {
	p.mu.Lock()
	latest := p.latest
	p.mu.Unlock()

	if latest == nil {
		return model.Portfolio{}, false
	}
	return Revalue(*latest, p.prices), true
}

// Stats returns poller counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll fetches one portfolio and publishes its valuation.
func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	pf, err := p.source.GetPortfolio(ctx)

	p.mu.Lock()
	p.stats.Polls++
	p.stats.LastPoll = start
	if err != nil {
		p.stats.Errors++
	} else {
		p.latest = pf
		p.stats.Holdings = len(pf.Holdings)
	}
	p.mu.Unlock()

	if err != nil {
		if p.ctx.Err() == nil {
			p.logger.Warn("failed to fetch portfolio", "err", err)
		}
		return
	}

	valued := Revalue(*pf, p.prices)
	p.logger.Debug("portfolio valued",
		"holdings", len(valued.Holdings),
		"total_value", valued.TotalValue,
		"duration", time.Since(start),
	)

	if p.handler != nil {
		p.handler.HandlePortfolio(valued)
	}
}

// Revalue prices holdings at live quotes where available and recomputes
// totals. Holdings without a live quote keep the server's price. Gain/loss
// is recomputed only when every holding carries an average cost.
func Revalue(pf model.Portfolio, prices PriceSource) model.Portfolio {
	out := pf
	out.Holdings = make([]model.Holding, len(pf.Holdings))

	var value, cost float64
	costKnown := len(pf.Holdings) > 0
	for i, h := range pf.Holdings {
		if prices != nil {
			if q, ok := prices.Price(h.Symbol); ok {
				h.Price = q.Price
				h.Change = q.Change
				h.Value = 0
			}
		}
		if h.Value == 0 {
			h.Value = h.Quantity * h.Price
		}
		out.Holdings[i] = h

		value += h.Value
		if h.AverageCost <= 0 {
			costKnown = false
		}
		cost += h.Quantity * h.AverageCost
	}

	out.TotalValue = pf.Balance + value
	if costKnown && cost > 0 {
		out.GainLoss = value - cost
		out.GainLossPercent = out.GainLoss / cost * 100
	}
	return out
}

// Symbols returns the distinct symbols held in pf.
func Symbols(pf model.Portfolio) []string {
	seen := make(map[string]struct{}, len(pf.Holdings))
	var out []string
	for _, h := range pf.Holdings {
		sym := model.NormalizeSymbol(h.Symbol)
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
