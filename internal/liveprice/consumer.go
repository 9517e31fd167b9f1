package liveprice

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/liveprice/internal/model"
)

// Consumer is one attached observer of the shared price table.
type Consumer struct {
	id       uuid.UUID
	hub      *Hub
	observer Observer

	mu       sync.Mutex
	symbols  map[string]struct{}
	view     View
	detached bool

	// Orders Declare against Detach so a removed consumer is never re-added
	// to the tracker
	declareMu sync.Mutex
	detaching bool

	detachOnce sync.Once
}

// ID returns the consumer's identity.
func (c *Consumer) ID() uuid.UUID {
	return c.id
}

// Declare replaces the consumer's symbol set. Repeating the same set sends
// nothing to the server.
func (c *Consumer) Declare(symbols []string) {
	c.declareMu.Lock()
	if c.detaching {
		c.declareMu.Unlock()
		return
	}
	c.mu.Lock()
	c.symbols = model.SymbolSet(symbols)
	c.mu.Unlock()
	c.hub.tracker.Declare(c.id, symbols)
	c.declareMu.Unlock()

	c.hub.deliverTo(c)
}

// Symbols returns the declared set in sorted order.
func (c *Consumer) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.symbols))
	for sym := range c.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// View returns the last delivered view.
func (c *Consumer) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return View{Prices: c.view.Prices.Clone(), Connected: c.view.Connected}
}

// Detach flushes everything received so far, delivers the final view to this
// consumer and removes it. The shared connection stays up. Safe to call more
// than once.
func (c *Consumer) Detach() {
	c.detachOnce.Do(func() {
		c.declareMu.Lock()
		c.detaching = true
		c.declareMu.Unlock()

		c.hub.detach(c)

		c.mu.Lock()
		c.detached = true
		c.mu.Unlock()
	})
}

// deliver builds this consumer's view of table and invokes the observer.
// Caller holds the hub's deliverMu.
func (c *Consumer) deliver(table model.PriceTable, connected bool) {
	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return
	}
	v := View{Prices: table.Filter(c.symbols), Connected: connected}
	c.view = v
	observer := c.observer
	c.mu.Unlock()

	if observer != nil {
		observer(View{Prices: v.Prices.Clone(), Connected: connected})
	}
}
