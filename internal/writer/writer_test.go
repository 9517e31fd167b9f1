package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/liveprice/internal/model"
)

// recordingSink stores every batch it receives.
type recordingSink struct {
	mu      sync.Mutex
	batches [][]model.PriceQuote
	err     error
}

func (s *recordingSink) Write(ctx context.Context, quotes []model.PriceQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]model.PriceQuote(nil), quotes...))
	return nil
}

func (s *recordingSink) prices() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []float64
	for _, b := range s.batches {
		for _, q := range b {
			out = append(out, q.Price)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestQuoteWriter_FlushesFullBatch(t *testing.T) {
	sink := &recordingSink{}
	w := NewQuoteWriter(Config{BatchSize: 3, FlushInterval: time.Hour}, sink, nil)
	w.Start(context.Background())
	defer w.Stop(context.Background())

	for i := 1; i <= 3; i++ {
		w.Submit(model.PriceQuote{Symbol: "AAPL", Price: float64(i)})
	}

	waitFor(t, "batch flush", func() bool { return w.Stats().Flushes == 1 })

	got := sink.prices()
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("written prices = %v, want [1 2 3]", got)
	}
}

func TestQuoteWriter_FlushesOnInterval(t *testing.T) {
	sink := &recordingSink{}
	w := NewQuoteWriter(Config{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, sink, nil)
	w.Start(context.Background())
	defer w.Stop(context.Background())

	w.Submit(model.PriceQuote{Symbol: "MSFT", Price: 410})

	waitFor(t, "interval flush", func() bool { return w.Stats().Written == 1 })
}

func TestQuoteWriter_StopFlushesRemainder(t *testing.T) {
	sink := &recordingSink{}
	w := NewQuoteWriter(Config{BatchSize: 100, FlushInterval: time.Hour}, sink, nil)
	w.Start(context.Background())

	for i := 1; i <= 5; i++ {
		w.Submit(model.PriceQuote{Symbol: "TSLA", Price: float64(i)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	got := sink.prices()
	if len(got) != 5 {
		t.Fatalf("written %d quotes, want 5", len(got))
	}
	for i, p := range got {
		if p != float64(i+1) {
			t.Errorf("quote %d price = %v, want %d (submission order)", i, p, i+1)
		}
	}

	w.Submit(model.PriceQuote{Symbol: "TSLA", Price: 6})
	if got := w.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestQuoteWriter_SinkErrorCounted(t *testing.T) {
	sink := &recordingSink{err: errors.New("redis down")}
	w := NewQuoteWriter(Config{BatchSize: 1, FlushInterval: time.Hour}, sink, nil)
	w.Start(context.Background())
	defer w.Stop(context.Background())

	w.Submit(model.PriceQuote{Symbol: "AAPL", Price: 1})

	waitFor(t, "error", func() bool { return w.Stats().Errors == 1 })
	if got := w.Stats().Written; got != 0 {
		t.Errorf("Written = %d, want 0", got)
	}
}

func TestSinkFunc(t *testing.T) {
	var n int
	sink := SinkFunc(func(ctx context.Context, quotes []model.PriceQuote) error {
		n += len(quotes)
		return nil
	})
	if err := sink.Write(context.Background(), make([]model.PriceQuote, 4)); err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("n = %d, want 4", n)
	}
}
