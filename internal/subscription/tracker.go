package subscription

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/liveprice/internal/connection"
	"github.com/rickgao/liveprice/internal/model"
)

// Sender writes one event to the server. connection.Manager satisfies it.
type Sender interface {
	Send(event string, data any) error
}

// Config holds tracker configuration.
type Config struct {
	// UnsubscribeOnIdle sends unsubscribe when no consumer wants a symbol.
	UnsubscribeOnIdle bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{UnsubscribeOnIdle: true}
}

// Stats contains tracker statistics.
type Stats struct {
	Consumers        int
	Symbols          int
	Live             bool
	SubscribesSent   int64
	UnsubscribesSent int64
	SendErrors       int64
	Resumes          int64
}

// Tracker holds per-consumer interest and the reference-counted union.
type Tracker struct {
	cfg    Config
	sender Sender
	logger *slog.Logger

	mu       sync.Mutex
	declared map[uuid.UUID]map[string]struct{}
	refs     map[string]int
	live     bool
	stats    Stats
}

// NewTracker creates a tracker that is not live until Resume.
func NewTracker(cfg Config, sender Sender, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		cfg:      cfg,
		sender:   sender,
		logger:   logger.With("component", "subscription"),
		declared: make(map[uuid.UUID]map[string]struct{}),
		refs:     make(map[string]int),
	}
}

// Declare replaces a consumer's symbol set. It returns the symbols that
// entered and left the union, sorted. An empty set means all symbols and
// contributes nothing to the union.
func (t *Tracker) Declare(id uuid.UUID, symbols []string) (added, removed []string) {
	next := model.SymbolSet(symbols)

	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.declared[id]
	t.declared[id] = next

	for sym := range next {
		if _, ok := prev[sym]; ok {
			continue
		}
		t.refs[sym]++
		if t.refs[sym] == 1 {
			added = append(added, sym)
		}
	}
	for sym := range prev {
		if _, ok := next[sym]; ok {
			continue
		}
		if t.release(sym) {
			removed = append(removed, sym)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	t.sendLocked(added, removed)
	return added, removed
}

// Remove drops all of a consumer's interest and returns the symbols that
// left the union.
func (t *Tracker) Remove(id uuid.UUID) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.declared[id]
	if !ok {
		return nil
	}
	delete(t.declared, id)

	var removed []string
	for sym := range prev {
		if t.release(sym) {
			removed = append(removed, sym)
		}
	}

	sort.Strings(removed)
	t.sendLocked(nil, removed)
	return removed
}

// Declared returns a copy of a consumer's set.
func (t *Tracker) Declared(id uuid.UUID) (map[string]struct{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.declared[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]struct{}, len(set))
	for sym := range set {
		out[sym] = struct{}{}
	}
	return out, true
}

// Resume marks the session live and subscribes the whole union in sorted
// order. Returns the number of symbols sent. Calling it again without an
// intervening Suspend sends nothing.
func (t *Tracker) Resume() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.live {
		return 0
	}
	t.live = true
	t.stats.Resumes++

	symbols := t.symbolsLocked()
	t.sendLocked(symbols, nil)

	t.logger.Debug("resubscribed union", "symbols", len(symbols))
	return len(symbols)
}

// Suspend marks the session not live. Declarations keep updating state and
// are covered by the next Resume.
func (t *Tracker) Suspend() {
	t.mu.Lock()
	t.live = false
	t.mu.Unlock()
}

// Symbols returns the union in sorted order.
func (t *Tracker) Symbols() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.symbolsLocked()
}

// Stats returns current statistics.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	s.Consumers = len(t.declared)
	s.Symbols = len(t.refs)
	s.Live = t.live
	return s
}

// release decrements a symbol's count and reports whether it left the union.
func (t *Tracker) release(sym string) bool {
	t.refs[sym]--
	if t.refs[sym] > 0 {
		return false
	}
	delete(t.refs, sym)
	return true
}

func (t *Tracker) symbolsLocked() []string {
	out := make([]string, 0, len(t.refs))
	for sym := range t.refs {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// sendLocked emits subscribe and unsubscribe events while live.
// Failures are logged; the union is unchanged and Resume re-sends it.
func (t *Tracker) sendLocked(subscribe, unsubscribe []string) {
	if !t.live || t.sender == nil {
		return
	}

	for _, sym := range subscribe {
		if err := t.sender.Send(connection.EventSubscribe, sym); err != nil {
			t.stats.SendErrors++
			t.logger.Warn("subscribe failed", "symbol", sym, "error", err)
			continue
		}
		t.stats.SubscribesSent++
	}

	if !t.cfg.UnsubscribeOnIdle {
		return
	}
	for _, sym := range unsubscribe {
		if err := t.sender.Send(connection.EventUnsubscribe, sym); err != nil {
			t.stats.SendErrors++
			t.logger.Warn("unsubscribe failed", "symbol", sym, "error", err)
			continue
		}
		t.stats.UnsubscribesSent++
	}
}
