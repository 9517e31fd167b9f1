package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/rickgao/liveprice/internal/model"
)

// ErrInvalidTrade is returned for trade requests rejected before sending.
var ErrInvalidTrade = errors.New("invalid trade")

// GetPortfolio fetches the authenticated user's portfolio.
func (c *Client) GetPortfolio(ctx context.Context) (*model.Portfolio, error) {
	var resp model.Portfolio
	if err := c.get(ctx, "/api/portfolio", nil, true, &resp); err != nil {
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	return &resp, nil
}

// GetTrades fetches the authenticated user's trade history.
func (c *Client) GetTrades(ctx context.Context) ([]model.Trade, error) {
	var resp TradesResponse
	if err := c.get(ctx, "/api/portfolio/trades", nil, true, &resp); err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}
	return resp.Trades, nil
}

// SubmitTrade places an order. The client order ID doubles as an
// idempotency key, which makes retrying the POST safe.
func (c *Client) SubmitTrade(ctx context.Context, req model.TradeRequest) (*model.TradeResult, error) {
	req.Symbol = model.NormalizeSymbol(req.Symbol)
	if req.Symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrInvalidTrade)
	}
	side, ok := model.ParseTradeSide(string(req.Side))
	if !ok {
		return nil, fmt.Errorf("%w: side %q", ErrInvalidTrade, req.Side)
	}
	req.Side = side
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidTrade)
	}
	if req.Price < 0 {
		return nil, fmt.Errorf("%w: negative price", ErrInvalidTrade)
	}
	if req.ClientOrderID == uuid.Nil {
		req.ClientOrderID = uuid.New()
	}

	header := http.Header{}
	header.Set("Idempotency-Key", req.ClientOrderID.String())

	var resp model.TradeResult
	err := c.call(ctx, request{
		method:    http.MethodPost,
		path:      "/api/portfolio/trade",
		body:      req,
		header:    header,
		auth:      true,
		retryable: true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("submit trade %s %s: %w", req.Side, req.Symbol, err)
	}

	c.logger.Info("trade submitted",
		"symbol", req.Symbol,
		"side", req.Side,
		"quantity", req.Quantity,
		"client_order_id", req.ClientOrderID,
	)
	return &resp, nil
}
