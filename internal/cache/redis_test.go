package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rickgao/liveprice/internal/config"
	"github.com/rickgao/liveprice/internal/model"
)

func newTestSource(t *testing.T, ttl time.Duration) (*RedisSource, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := NewClient(config.RedisConfig{Addr: mr.Addr()})
	src := NewRedisSource(client, "stock:", ttl, nil)
	t.Cleanup(func() { src.Close() })
	return src, mr
}

func bySymbol(quotes []model.PriceQuote) map[string]model.PriceQuote {
	out := make(map[string]model.PriceQuote, len(quotes))
	for _, q := range quotes {
		out[q.Symbol] = q
	}
	return out
}

func TestRedisSource_Snapshot(t *testing.T) {
	src, mr := newTestSource(t, 0)

	// Written by a feed processor: unix micro timestamps, no high/low
	mr.Set("stock:AAPL", `{"symbol":"AAPL","price":150.25,"timestamp":1709305200000000,"seq_id":7}`)
	mr.Set("stock:MSFT", `{"symbol":"MSFT","price":410,"high":412,"low":405,"timestamp":1709305200000}`)
	mr.Set("stock:tsla", `{"price":200}`)
	mr.Set("stock:BAD", `not json`)
	mr.Set("other:GOOG", `{"symbol":"GOOG","price":140}`)

	quotes, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	got := bySymbol(quotes)
	if len(got) != 3 {
		t.Fatalf("got %d quotes, want 3: %+v", len(got), quotes)
	}

	want := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	if q := got["AAPL"]; q.Price != 150.25 || !q.ObservedAt.Equal(want) {
		t.Errorf("AAPL = %+v", q)
	}
	if q := got["MSFT"]; q.High != 412 || !q.ObservedAt.Equal(want) {
		t.Errorf("MSFT = %+v", q)
	}
	if q := got["TSLA"]; q.Price != 200 {
		t.Errorf("TSLA from key name = %+v", q)
	}
	if _, ok := got["GOOG"]; ok {
		t.Error("key outside prefix was read")
	}
}

func TestRedisSource_SnapshotManyKeys(t *testing.T) {
	src, mr := newTestSource(t, 0)

	for i := 0; i < 1200; i++ {
		mr.Set(fmt.Sprintf("stock:S%04d", i), fmt.Sprintf(`{"price":%d}`, i))
	}

	quotes, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(quotes) != 1200 {
		t.Errorf("got %d quotes, want 1200", len(quotes))
	}
}

func TestRedisSource_Quotes(t *testing.T) {
	src, mr := newTestSource(t, 0)
	mr.Set("stock:AAPL", `{"symbol":"AAPL","price":1}`)

	quotes, err := src.Quotes(context.Background(), []string{"aapl", "MISSING"})
	if err != nil {
		t.Fatalf("Quotes failed: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Symbol != "AAPL" {
		t.Errorf("quotes = %+v", quotes)
	}
}

func TestRedisSource_Publish(t *testing.T) {
	src, mr := newTestSource(t, time.Hour)

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()}).Subscribe(context.Background(), "prices.AAPL")
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	observed := time.UnixMilli(1709305200000).UTC()
	err := src.Publish(context.Background(), []model.PriceQuote{
		{Symbol: "AAPL", Price: 151, High: 152, Low: 149, ObservedAt: observed},
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	raw, err := mr.Get("stock:AAPL")
	if err != nil {
		t.Fatalf("key not written: %v", err)
	}
	var r record
	json.Unmarshal([]byte(raw), &r)
	if r.Price != 151 || r.Timestamp != 1709305200000 {
		t.Errorf("stored = %+v", r)
	}
	if ttl := mr.TTL("stock:AAPL"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Payload != raw {
			t.Errorf("published %q, stored %q", msg.Payload, raw)
		}
	case <-time.After(time.Second):
		t.Fatal("no message published")
	}

	// Round trip
	quotes, _ := src.Snapshot(context.Background())
	if len(quotes) != 1 || !quotes[0].ObservedAt.Equal(observed) || quotes[0].High != 152 {
		t.Errorf("round trip = %+v", quotes)
	}

	if err := src.Publish(context.Background(), nil); err != nil {
		t.Errorf("Publish(nil) = %v", err)
	}
}

func TestRedisSource_Unavailable(t *testing.T) {
	src, mr := newTestSource(t, 0)
	mr.Close()

	if err := src.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded against closed server")
	}
	if _, err := src.Snapshot(context.Background()); err == nil {
		t.Error("Snapshot succeeded against closed server")
	}
}
