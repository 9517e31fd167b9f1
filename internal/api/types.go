package api

import (
	"github.com/rickgao/liveprice/internal/model"
)

// PriceEntry is one symbol of GET /api/stocks/prices.
type PriceEntry struct {
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
}

// PricesResponse from GET /api/stocks/prices, keyed by symbol.
type PricesResponse map[string]PriceEntry

// HistoryResponse from GET /api/stocks/{symbol}/history
type HistoryResponse struct {
	Data []model.HistoryPoint `json:"data"`
}

// TradesResponse from GET /api/portfolio/trades
type TradesResponse struct {
	Trades []model.Trade `json:"trades"`
}

// WatchlistResponse from GET /api/watchlist
type WatchlistResponse struct {
	Watchlist []model.WatchlistItem `json:"watchlist"`
}

// WatchlistAddResponse from POST /api/watchlist
type WatchlistAddResponse struct {
	Item model.WatchlistItem `json:"item"`
}

// LoginRequest for POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest for POST /api/auth/register
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the account returned by the auth endpoints.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthResponse from the auth endpoints.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
