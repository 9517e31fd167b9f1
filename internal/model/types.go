package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Quote Types
// -----------------------------------------------------------------------------

// PriceQuote is a priced snapshot of a symbol at a point in time.
// Quotes are values: an update replaces the previous quote wholesale.
type PriceQuote struct {
	Symbol     string    // Upper-case ticker, unique key
	Price      float64   // Last price
	Change     float64   // Percent change
	High       float64   // Session high
	Low        float64   // Session low
	ObservedAt time.Time // Server timestamp, or local receive time if absent
}

// PriceTable maps symbol to the latest quote for that symbol.
type PriceTable map[string]PriceQuote

// Clone returns an independent copy of the table.
func (t PriceTable) Clone() PriceTable {
	out := make(PriceTable, len(t))
	for sym, q := range t {
		out[sym] = q
	}
	return out
}

// Filter returns a copy holding only the given symbols.
// A nil or empty set returns a copy of the whole table.
func (t PriceTable) Filter(symbols map[string]struct{}) PriceTable {
	if len(symbols) == 0 {
		return t.Clone()
	}
	out := make(PriceTable, len(symbols))
	for sym := range symbols {
		if q, ok := t[sym]; ok {
			out[sym] = q
		}
	}
	return out
}

// Symbols returns the table's symbols in sorted order.
func (t PriceTable) Symbols() []string {
	out := make([]string, 0, len(t))
	for sym := range t {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// NormalizeSymbol trims and upper-cases a ticker. Returns "" for blank input.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// SymbolSet builds a normalized set from a list, skipping blanks.
func SymbolSet(symbols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if sym := NormalizeSymbol(s); sym != "" {
			set[sym] = struct{}{}
		}
	}
	return set
}

// -----------------------------------------------------------------------------
// History Types
// -----------------------------------------------------------------------------

// HistoryPoint is one sample of a historical price series.
type HistoryPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// -----------------------------------------------------------------------------
// Portfolio Types
// -----------------------------------------------------------------------------

// Holding is a position in one symbol.
type Holding struct {
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	AverageCost float64 `json:"averageCost"`
	Price       float64 `json:"price,omitempty"`
	Value       float64 `json:"value,omitempty"`
	Change      float64 `json:"change,omitempty"`
}

// Portfolio is the authenticated user's cash, holdings and recent trades.
type Portfolio struct {
	Balance         float64   `json:"balance"`
	TotalValue      float64   `json:"totalValue"`
	GainLoss        float64   `json:"gainLoss"`
	GainLossPercent float64   `json:"gainLossPercent"`
	Holdings        []Holding `json:"holdings"`
	RecentOrders    []Trade   `json:"recentOrders"`
}

// TradeSide is the direction of a trade.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// ParseTradeSide accepts buy/sell in any case.
func ParseTradeSide(s string) (TradeSide, bool) {
	switch TradeSide(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	}
	return "", false
}

// TradeRequest is an order submitted to the portfolio service.
// ClientOrderID makes resubmission safe; it is generated when zero.
type TradeRequest struct {
	ClientOrderID uuid.UUID `json:"clientOrderId"`
	Symbol        string    `json:"symbol"`
	Side          TradeSide `json:"type"`
	Quantity      float64   `json:"quantity"`
	Price         float64   `json:"price"`
}

// Trade is an executed order.
type Trade struct {
	ID        string    `json:"_id"`
	Symbol    string    `json:"symbol"`
	Side      TradeSide `json:"type"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// TradeResult is the portfolio service's answer to a TradeRequest.
type TradeResult struct {
	Trade   *Trade `json:"trade"`
	Message string `json:"message,omitempty"`
}

// WatchlistItem is one entry of the user's watchlist.
type WatchlistItem struct {
	ID      string `json:"id"`
	Symbol  string `json:"symbol"`
	AddedAt string `json:"addedAt"`
}
