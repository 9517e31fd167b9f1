package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Handler receives connection lifecycle transitions and inbound frames.
// Both methods are called from the manager's run loop; HandleState is also
// called from Disconnect. Implementations must not call Disconnect or Close
// synchronously from either method.
type Handler interface {
	// HandleState is called after every state transition.
	HandleState(State)

	// HandleMessage is called for each inbound frame, in receive order.
	HandleMessage(TimestampedMessage)
}

// DialFunc opens a connected Client.
type DialFunc func(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (Client, error)

// Manager owns the single shared connection to the price server.
type Manager interface {
	// Ensure starts connecting if the manager is Disconnected and returns the
	// current state. It is a no-op while Connecting, Connected or Failed.
	Ensure() State

	// Disconnect cancels the run loop and any pending retry, closes the
	// transport and moves to Disconnected. It also resets Failed.
	Disconnect()

	// Close disconnects and rejects further Ensure calls.
	Close()

	// Send writes one event to the server.
	Send(event string, data any) error

	// State returns the current state.
	State() State

	// Stats returns current connection statistics.
	Stats() ManagerStats
}

// ManagerOption configures a manager.
type ManagerOption func(*manager)

// WithDialer overrides how connections are opened.
func WithDialer(dial DialFunc) ManagerOption {
	return func(m *manager) {
		m.dial = dial
	}
}

// manager implements the Manager interface.
type manager struct {
	cfg     ManagerConfig
	handler Handler
	logger  *slog.Logger
	dial    DialFunc

	mu     sync.RWMutex
	state  State
	client Client
	cancel context.CancelFunc
	done   chan struct{} // non-nil while a session exists (running or Failed)
	closed bool

	// Guards handler notification order
	notifyMu sync.Mutex

	stats ManagerStats
}

// NewManager creates a new Connection Manager in the Disconnected state.
func NewManager(cfg ManagerConfig, handler Handler, logger *slog.Logger, opts ...ManagerOption) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		dial:    dialClient,
		state:   StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// dialClient is the default DialFunc.
func dialClient(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (Client, error) {
	c := NewClient(cfg, logger)
	if err := c.Connect(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Ensure starts the run loop on first use.
func (m *manager) Ensure() State {
	m.mu.Lock()
	if m.closed || m.done != nil {
		s := m.state
		m.mu.Unlock()
		return s
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.logger.Info("connection manager started", "url", m.cfg.Client.URL)

	// Connecting is visible before Ensure returns
	m.setState(StateConnecting)
	go m.run(ctx, done)

	return StateConnecting
}

// Disconnect tears the session down.
func (m *manager) Disconnect() {
	m.mu.Lock()
	cancel, done, client := m.cancel, m.done, m.client
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	// Closing unblocks the read loop
	if client != nil {
		client.Close()
	}
	if done != nil {
		<-done
	}

	m.setState(StateDisconnected)
	if done != nil {
		m.logger.Info("connection manager disconnected")
	}
}

// Close disconnects and prevents restarting.
func (m *manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.Disconnect()
}

// Send marshals data into an envelope and writes it.
func (m *manager) Send(event string, data any) error {
	m.mu.RLock()
	c := m.client
	m.mu.RUnlock()

	if c == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}

	if err := c.Send(frame); err != nil {
		return err
	}

	m.mu.Lock()
	m.stats.Sent++
	m.mu.Unlock()
	return nil
}

// State returns the current state.
func (m *manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.stats
	s.State = m.state
	return s
}

// setState records a transition and notifies the handler if it changed.
func (m *manager) setState(s State) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()

	if prev == s {
		return
	}

	m.logger.Info("connection state changed", "from", prev, "to", s)
	if m.handler != nil {
		m.handler.HandleState(s)
	}
}

// run dials, reads until the transport drops, and retries with backoff.
// It returns on cancellation or after MaxAttempts consecutive failed dials.
func (m *manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	failures := 0
	for {
		m.setState(StateConnecting)

		c, err := m.dial(ctx, m.cfg.Client, m.logger)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			failures++
			m.mu.Lock()
			m.stats.FailedDials++
			m.mu.Unlock()

			if failures >= m.cfg.MaxAttempts {
				m.logger.Error("reconnection attempts exhausted",
					"attempts", failures,
					"error", err,
				)
				m.setState(StateFailed)
				return
			}

			wait := Backoff(failures, m.cfg.ReconnectMinDelay, m.cfg.ReconnectMaxDelay)
			m.logger.Warn("connection attempt failed",
				"attempt", failures,
				"max_attempts", m.cfg.MaxAttempts,
				"retry_in", wait,
				"error", err,
			)
			if !sleepCtx(ctx, wait) {
				return
			}
			continue
		}

		failures = 0

		m.mu.Lock()
		if ctx.Err() != nil {
			m.mu.Unlock()
			c.Close()
			return
		}
		m.client = c
		m.stats.Connects++
		m.mu.Unlock()

		m.setState(StateConnected)

		err = m.readLoop(ctx, c)

		m.mu.Lock()
		m.client = nil
		m.mu.Unlock()
		c.Close()

		if ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		m.stats.Drops++
		m.mu.Unlock()

		m.logger.Warn("connection lost", "error", err)
		m.setState(StateConnecting)

		if !sleepCtx(ctx, m.cfg.ReconnectMinDelay) {
			return
		}
	}
}

// readLoop forwards frames to the handler until the client fails.
func (m *manager) readLoop(ctx context.Context, c Client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-c.Errors():
			// Deliver frames that were read before the failure
			m.drainMessages(c)
			return err

		case msg := <-c.Messages():
			m.deliver(msg)
		}
	}
}

func (m *manager) drainMessages(c Client) {
	for {
		select {
		case msg := <-c.Messages():
			m.deliver(msg)
		default:
			return
		}
	}
}

func (m *manager) deliver(msg TimestampedMessage) {
	m.mu.Lock()
	m.stats.Received++
	m.mu.Unlock()

	if m.handler != nil {
		m.handler.HandleMessage(msg)
	}
}

// sleepCtx waits for d or cancellation. Returns false if cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
