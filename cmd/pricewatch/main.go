package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/liveprice/internal/api"
	"github.com/rickgao/liveprice/internal/auth"
	"github.com/rickgao/liveprice/internal/config"
	"github.com/rickgao/liveprice/internal/connection"
	"github.com/rickgao/liveprice/internal/liveprice"
	"github.com/rickgao/liveprice/internal/model"
	"github.com/rickgao/liveprice/internal/poller"
	"github.com/rickgao/liveprice/internal/status"
	"github.com/rickgao/liveprice/internal/version"
)

// errConnectionFailed ends the process once reconnects are exhausted.
var errConnectionFailed = errors.New("price connection failed")

func main() {
	configPath := flag.String("config", "configs/pricewatch.local.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional KEY=VALUE file loaded before the config")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	statsEvery := flag.Duration("stats-interval", 30*time.Second, "how often to log hub statistics (0 disables)")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting pricewatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if err := run(*configPath, *envPath, *statsEvery, logger); err != nil {
		logger.Error("pricewatch failed", "error", err)
		os.Exit(1)
	}
	logger.Info("pricewatch stopped")
}

func run(configPath, envPath string, statsEvery time.Duration, logger *slog.Logger) error {
	if err := config.LoadDotEnv(envPath); err != nil {
		return err
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = logger.With("instance_id", cfg.Instance.ID)

	logger.Info("configuration loaded",
		"rest_url", cfg.API.RestURL,
		"ws_url", cfg.API.WSURL,
		"seed_sources", strings.Join(cfg.Seed.Sources, ","),
		"symbols", len(cfg.Watch.Symbols),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	creds, err := auth.LoadCredentials(cfg.API.Token, cfg.API.TokenFile)
	if errors.Is(err, auth.ErrNoToken) {
		logger.Info("no api token configured, running anonymously")
		creds = auth.NewCredentials("")
	} else if err != nil {
		return err
	}

	apiClient := api.NewClient(
		cfg.API.RestURL,
		creds,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, 500*time.Millisecond),
	)

	stores, err := openStores(ctx, cfg, apiClient, logger)
	if err != nil {
		return err
	}
	defer stores.close()

	if err := stores.startMirrors(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		stores.stopMirrors(shutdownCtx)
	}()

	hubCfg := liveprice.ConfigFrom(cfg)
	hubCfg.Connection.Client.Token = creds.Token()

	hub, err := liveprice.New(hubCfg, liveprice.Deps{
		Seed:   stores.seed(),
		Logger: logger,
		Tap:    stores.tap(),
	})
	if err != nil {
		return fmt.Errorf("create hub: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := hub.Close(shutdownCtx); err != nil {
			logger.Warn("hub close", "error", err)
		}
	}()

	watcher, err := hub.Attach(cfg.Watch.Symbols, logView(logger))
	if err != nil {
		return fmt.Errorf("attach watcher: %w", err)
	}
	defer watcher.Detach()

	statusOpts := stores.statsOptions()

	if cfg.Portfolio.Poll {
		pp := poller.New(
			poller.Config{Interval: cfg.Portfolio.Interval, Timeout: cfg.API.Timeout},
			apiClient,
			hub,
			followHoldings(watcher, cfg.Watch.Symbols, logger),
			logger,
		)
		if err := pp.Start(ctx); err != nil {
			return fmt.Errorf("start portfolio poller: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			pp.Stop(shutdownCtx)
		}()

		statusOpts = append(statusOpts, status.WithStats("portfolio", func() any {
			pf, ok := pp.Latest()
			if !ok {
				return pp.Stats()
			}
			return gin.H{"poller": pp.Stats(), "valuation": pf}
		}))
	}

	server := status.NewServer(
		status.Config{Addr: fmt.Sprintf(":%d", cfg.Status.Port)},
		hub,
		logger,
		statusOpts...,
	)
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Stop(shutdownCtx)
	}()

	logger.Info("pricewatch running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Status.Port),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watchHub(gctx, hub, statsEvery, logger)
	})

	err = g.Wait()
	logger.Info("shutting down...")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchHub logs periodic statistics and returns once the connection has
// given up or ctx is cancelled.
func watchHub(ctx context.Context, hub *liveprice.Hub, statsEvery time.Duration, logger *slog.Logger) error {
	check := time.NewTicker(time.Second)
	defer check.Stop()

	var statsC <-chan time.Time
	if statsEvery > 0 {
		t := time.NewTicker(statsEvery)
		defer t.Stop()
		statsC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-check.C:
			if hub.State() == connection.StateFailed {
				return errConnectionFailed
			}

		case <-statsC:
			s := hub.Stats()
			logger.Info("hub stats",
				"state", s.Connection.State,
				"consumers", s.Consumers,
				"symbols", s.Batcher.Symbols,
				"frames", s.Router.MessagesReceived,
				"quotes", s.Router.QuotesRouted,
				"parse_errors", s.Router.ParseErrors,
				"flushes", s.Batcher.Flushes,
				"coalesced", s.Batcher.Coalesced,
				"reconnects", s.Connection.Drops,
			)
		}
	}
}

// followHoldings widens the watcher to the portfolio's holdings so they are
// valued at streamed prices. A watcher on every symbol needs no change.
func followHoldings(watcher *liveprice.Consumer, watch []string, logger *slog.Logger) poller.Handler {
	return poller.HandlerFunc(func(pf model.Portfolio) {
		logger.Info("portfolio valued",
			"holdings", len(pf.Holdings),
			"total_value", pf.TotalValue,
			"gain_loss", pf.GainLoss,
		)
		if len(watch) == 0 {
			return
		}
		watcher.Declare(append(append([]string(nil), watch...), poller.Symbols(pf)...))
	})
}

// logView logs connectivity changes and each delivered table size.
func logView(logger *slog.Logger) liveprice.Observer {
	var connected bool
	first := true
	return func(v liveprice.View) {
		if first || v.Connected != connected {
			logger.Info("price feed connectivity", "connected", v.Connected)
			first = false
			connected = v.Connected
		}
		logger.Debug("price view", "symbols", len(v.Prices))
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
