// streamtest attaches to the price server and prints price changes to the console.
// Usage: go run ./cmd/streamtest --config configs/pricewatch.example.yaml --symbols AAPL,MSFT
//
// With --watchlist the symbols come from the authenticated user's watchlist
// (PRICE_API_TOKEN or api.token_file must be set).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/liveprice/internal/api"
	"github.com/rickgao/liveprice/internal/auth"
	"github.com/rickgao/liveprice/internal/config"
	"github.com/rickgao/liveprice/internal/liveprice"
	"github.com/rickgao/liveprice/internal/model"
)

func main() {
	configPath := flag.String("config", "configs/pricewatch.example.yaml", "path to config file")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (empty streams every symbol)")
	useWatchlist := flag.Bool("watchlist", false, "stream the symbols on the user's watchlist")
	history := flag.Bool("history", false, "print recent history for each symbol before streaming")
	verbose := flag.Bool("verbose", false, "print full quote JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	creds, err := auth.LoadCredentials(cfg.API.Token, cfg.API.TokenFile)
	if err != nil {
		creds = auth.NewCredentials("")
	}
	apiClient := api.NewClient(cfg.API.RestURL, creds, api.WithLogger(logger))

	symbols := splitSymbols(*symbolsFlag)
	if *useWatchlist {
		items, err := apiClient.GetWatchlist(ctx)
		if err != nil {
			logger.Error("failed to load watchlist", "error", err)
			os.Exit(1)
		}
		for _, it := range items {
			symbols = append(symbols, it.Symbol)
		}
		logger.Info("watchlist loaded", "symbols", len(items))
	}

	if *history {
		for _, sym := range symbols {
			printHistory(ctx, apiClient, sym, logger)
		}
	}

	hubCfg := liveprice.ConfigFrom(cfg)
	hubCfg.Connection.Client.Token = creds.Token()

	hub, err := liveprice.New(hubCfg, liveprice.Deps{Seed: apiClient, Logger: logger})
	if err != nil {
		logger.Error("failed to create hub", "error", err)
		os.Exit(1)
	}

	consumer, err := hub.Attach(symbols, printer(*verbose))
	if err != nil {
		logger.Error("failed to attach", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := hub.Stats()
				logger.Info("stats",
					"state", s.Connection.State,
					"router_received", s.Router.MessagesReceived,
					"quotes_routed", s.Router.QuotesRouted,
					"parse_errors", s.Router.ParseErrors,
					"flushes", s.Batcher.Flushes,
					"coalesced", s.Batcher.Coalesced,
					"subscribed", s.Subscriptions.Symbols,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", "symbols", len(symbols))

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	consumer.Detach()
	hub.Close(shutdownCtx)

	logger.Info("shutdown complete")
}

// printer prints quotes that changed since the previous view.
func printer(verbose bool) liveprice.Observer {
	var prev liveprice.View
	return func(v liveprice.View) {
		if v.Connected != prev.Connected {
			fmt.Printf("[CONN] connected=%v\n", v.Connected)
		}
		for _, sym := range v.Prices.Symbols() {
			q := v.Prices[sym]
			if old, ok := prev.Prices[sym]; ok && old == q {
				continue
			}
			if verbose {
				data, _ := json.MarshalIndent(q, "", "  ")
				fmt.Printf("[PRICE] %s\n", data)
			} else {
				fmt.Printf("[PRICE] symbol=%s price=%.2f change=%.2f%% high=%.2f low=%.2f at=%s\n",
					q.Symbol, q.Price, q.Change, q.High, q.Low, q.ObservedAt.Format(time.TimeOnly))
			}
		}
		prev = v
	}
}

func printHistory(ctx context.Context, client *api.Client, symbol string, logger *slog.Logger) {
	points, err := client.GetHistory(ctx, symbol)
	if err != nil {
		logger.Warn("history unavailable", "symbol", symbol, "error", err)
		return
	}
	if len(points) > 5 {
		points = points[len(points)-5:]
	}
	for _, p := range points {
		fmt.Printf("[HISTORY] symbol=%s date=%s price=%.2f\n", model.NormalizeSymbol(symbol), p.Date, p.Price)
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if sym := model.NormalizeSymbol(part); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}
