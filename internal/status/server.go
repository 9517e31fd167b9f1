package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/liveprice/internal/connection"
	"github.com/rickgao/liveprice/internal/liveprice"
	"github.com/rickgao/liveprice/internal/model"
	"github.com/rickgao/liveprice/internal/version"
)

// Source is the hub surface the server reads. *liveprice.Hub satisfies it.
type Source interface {
	Table() model.PriceTable
	Price(symbol string) (model.PriceQuote, bool)
	State() connection.State
	Stats() liveprice.Stats
}

// Config holds server settings.
type Config struct {
	Addr            string // host:port; ":0" picks a free port
	ShutdownTimeout time.Duration
}

// Option configures a server.
type Option func(*Server)

// WithStats adds a named section to /stats.
func WithStats(name string, fn func() any) Option {
	return func(s *Server) {
		s.extras[name] = fn
	}
}

// Server is the status HTTP server.
type Server struct {
	cfg    Config
	src    Source
	logger *slog.Logger
	extras map[string]func() any
	engine *gin.Engine

	mu   sync.Mutex
	srv  *http.Server
	addr string
	done chan struct{}
}

// NewServer builds the router. Nothing listens until Start.
func NewServer(cfg Config, src Source, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		cfg:    cfg,
		src:    src,
		logger: logger.With("component", "status"),
		extras: make(map[string]func() any),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.logRequests())
	s.engine.GET("/health", s.health)
	s.engine.GET("/prices", s.prices)
	s.engine.GET("/prices/:symbol", s.price)
	s.engine.GET("/stats", s.stats)
	s.engine.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get())
	})
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})

	s.mu.Lock()
	s.srv = srv
	s.addr = ln.Addr().String()
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server failed", "error", err)
		}
	}()

	s.logger.Info("status server listening", "addr", s.Addr())
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	<-done
	if err != nil {
		return fmt.Errorf("shutdown status server: %w", err)
	}
	s.logger.Info("status server stopped")
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
