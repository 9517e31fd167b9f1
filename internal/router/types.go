package router

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Config holds configuration for the router.
type Config struct {
	QueueSize int // Initial queue capacity (default: 1024)
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{QueueSize: 1024}
}

// Stats contains runtime statistics.
type Stats struct {
	MessagesReceived int64
	QuotesRouted     int64
	ParseErrors      int64
	UnknownMessages  int64
	ServerErrors     int64
	Queue            QueueStats
}

// Wire types for JSON parsing

// quoteWire is the payload of priceUpdate and the nested quote of subscribed.
type quoteWire struct {
	Symbol    string   `json:"symbol"`
	Price     *float64 `json:"price"`
	Change    float64  `json:"change"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Timestamp wireTime `json:"timestamp"`
}

// subscribedWire is the object form of a subscribed acknowledgement.
type subscribedWire struct {
	Symbol string     `json:"symbol"`
	Data   *quoteWire `json:"data"`
}

// wireTime accepts Unix milliseconds, an RFC 3339 string, or null.
type wireTime struct {
	time.Time
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}

	var ms float64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}
