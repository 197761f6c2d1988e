package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wirebridge/pkg/wirebridge"
)

// State is the connection manager's observable state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// TransportFactory builds a transport for one authenticated session. onState
// must be passed through so the manager tracks the connection lifecycle.
type TransportFactory func(token string, onState func(State)) wirebridge.Transport

// ManagerOption mutates manager configuration.
type ManagerOption func(*Manager)

// WithManagerLogger injects a structured logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(manager *Manager) {
		if logger != nil {
			manager.logger = logger
		}
	}
}

// WithOnIdentity registers the callback that receives the user identity
// derived from the access token when a session starts.
func WithOnIdentity(fn func(wirebridge.User)) ManagerOption {
	return func(manager *Manager) {
		manager.onIdentity = fn
	}
}

// WithOnTeardown registers the callback invoked after a session fully stops,
// for clearing session-scoped state.
func WithOnTeardown(fn func()) ManagerOption {
	return func(manager *Manager) {
		manager.onTeardown = fn
	}
}

// Manager ties the transport lifecycle to the auth lifecycle: authenticated
// means a connection should exist, unauthenticated means it should not.
// Reconnect attempts in between are the transport's business; the manager
// only tracks the resulting state.
type Manager struct {
	factory TransportFactory
	sink    wirebridge.EventSink

	logger     *slog.Logger
	onIdentity func(wirebridge.User)
	onTeardown func()

	mu        sync.Mutex
	state     State
	transport wirebridge.Transport
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewManager creates a manager in the disconnected state.
func NewManager(factory TransportFactory, sink wirebridge.EventSink, options ...ManagerOption) *Manager {
	manager := &Manager{
		factory: factory,
		sink:    sink,
		logger:  slog.Default(),
		state:   StateDisconnected,
	}
	for _, option := range options {
		option(manager)
	}

	return manager
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// SetAuthenticated starts a session for the given access token. The identity
// callback fires before any event can arrive, so handlers always see a
// populated session. A session that is already running is left alone.
func (m *Manager) SetAuthenticated(ctx context.Context, token string) error {
	user, err := IdentityFromToken(token, time.Now())
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	m.mu.Lock()
	if m.transport != nil {
		m.mu.Unlock()

		return nil
	}
	transport := m.factory(token, m.observeState)

	// The session outlives the call that started it; only SetUnauthenticated
	// or transport failure ends it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	m.transport = transport
	m.cancel = cancel
	m.done = done
	m.state = StateConnecting
	m.mu.Unlock()

	if m.onIdentity != nil {
		m.onIdentity(user)
	}
	m.logger.InfoContext(ctx, "session starting", "user_id", user.ID, "role", user.Role)

	go func() {
		defer close(done)
		err := transport.Start(runCtx, m.sink)
		if err != nil && !errIsCancel(err) {
			m.logger.Error("transport stopped", "error", err)
		}
		m.observeState(StateDisconnected)
	}()

	return nil
}

// SetUnauthenticated stops the running session, waits for the transport to
// drain, and fires the teardown callback. Idempotent.
func (m *Manager) SetUnauthenticated(ctx context.Context) error {
	m.mu.Lock()
	transport := m.transport
	cancel := m.cancel
	done := m.done
	m.transport = nil
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if transport == nil {
		return nil
	}

	cancel()
	shutdownErr := transport.Shutdown(ctx)
	if shutdownErr != nil && shutdownErr != wirebridge.ErrConnectionClosed {
		m.logger.WarnContext(ctx, "transport shutdown failed", "error", shutdownErr)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("stop session: %w", ctx.Err())
	}

	m.observeState(StateDisconnected)
	if m.onTeardown != nil {
		m.onTeardown()
	}
	m.logger.InfoContext(ctx, "session stopped")

	return nil
}

// observeState records a transport-reported state transition.
func (m *Manager) observeState(state State) {
	m.mu.Lock()
	previous := m.state
	m.state = state
	m.mu.Unlock()

	if previous != state {
		m.logger.Debug("connection state changed", "from", previous, "to", state)
	}
}
