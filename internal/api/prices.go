package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rickgao/liveprice/internal/model"
)

// GetPrices fetches the bulk price snapshot.
func (c *Client) GetPrices(ctx context.Context) (PricesResponse, error) {
	var resp PricesResponse
	if err := c.get(ctx, "/api/stocks/prices", nil, false, &resp); err != nil {
		return nil, fmt.Errorf("get prices: %w", err)
	}
	return resp, nil
}

// Snapshot returns the bulk prices as quotes observed now.
func (c *Client) Snapshot(ctx context.Context) ([]model.PriceQuote, error) {
	prices, err := c.GetPrices(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	quotes := make([]model.PriceQuote, 0, len(prices))
	for sym, p := range prices {
		sym = model.NormalizeSymbol(sym)
		if sym == "" {
			continue
		}
		quotes = append(quotes, model.PriceQuote{
			Symbol:     sym,
			Price:      p.Price,
			Change:     p.Change,
			High:       p.High,
			Low:        p.Low,
			ObservedAt: now,
		})
	}
	return quotes, nil
}

// GetHistory fetches the historical series for a symbol.
func (c *Client) GetHistory(ctx context.Context, symbol string) ([]model.HistoryPoint, error) {
	sym := model.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, fmt.Errorf("get history: empty symbol")
	}

	var resp HistoryResponse
	if err := c.get(ctx, "/api/stocks/"+url.PathEscape(sym)+"/history", nil, false, &resp); err != nil {
		return nil, fmt.Errorf("get history %s: %w", sym, err)
	}
	return resp.Data, nil
}
