package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rickgao/liveprice/internal/model"
)

// GetWatchlist fetches the authenticated user's watchlist.
func (c *Client) GetWatchlist(ctx context.Context) ([]model.WatchlistItem, error) {
	var resp WatchlistResponse
	if err := c.get(ctx, "/api/watchlist", nil, true, &resp); err != nil {
		return nil, fmt.Errorf("get watchlist: %w", err)
	}
	return resp.Watchlist, nil
}

// AddToWatchlist adds a symbol and returns the stored item.
func (c *Client) AddToWatchlist(ctx context.Context, symbol string) (*model.WatchlistItem, error) {
	sym := model.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, fmt.Errorf("add to watchlist: empty symbol")
	}

	var resp WatchlistAddResponse
	err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/api/watchlist",
		body:   map[string]string{"symbol": sym},
		auth:   true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("add %s to watchlist: %w", sym, err)
	}
	return &resp.Item, nil
}

// RemoveFromWatchlist deletes a watchlist entry by ID.
func (c *Client) RemoveFromWatchlist(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("remove from watchlist: empty id")
	}

	err := c.call(ctx, request{
		method:    http.MethodDelete,
		path:      "/api/watchlist/" + url.PathEscape(id),
		auth:      true,
		retryable: true,
	}, nil)
	if err != nil {
		return fmt.Errorf("remove %s from watchlist: %w", id, err)
	}
	return nil
}
