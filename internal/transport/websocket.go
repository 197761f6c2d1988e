// Package transport connects the engine to the server's websocket feed. It
// owns the wire envelope codec, the reconnecting client, and the connection
// manager that ties session lifecycle to transport lifecycle.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"wirebridge/pkg/wirebridge"
)

const (
	defaultHeartbeatInterval  = 30 * time.Second
	defaultReconnectBaseDelay = time.Second
	defaultReconnectMaxDelay  = 30 * time.Second

	writeTimeout = 10 * time.Second
	closeTimeout = 5 * time.Second
)

// Config configures one websocket client.
type Config struct {
	// URL is the feed endpoint, ws:// or wss://.
	URL string

	// Token is the bearer access token presented at dial time.
	Token string

	// HeartbeatInterval is the ping cadence; reads time out at twice this.
	HeartbeatInterval time.Duration

	// Reconnect schedule. MaxReconnectAttempts of zero retries forever.
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int

	// OnStateChange observes connection state transitions. Optional.
	OnStateChange func(State)

	Logger *slog.Logger
	Dialer *websocket.Dialer
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = defaultReconnectBaseDelay
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = defaultReconnectMaxDelay
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
}

// Client is a reconnecting websocket transport. Start runs the read loop and
// transparently re-dials on connection loss; handlers attached to the sink
// survive every reconnect because the sink is bound once per Start.
type Client struct {
	cfg Config

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// writeMu serializes frames; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// NewClient creates a client; the connection is established by Start.
func NewClient(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{cfg: cfg}
}

var _ wirebridge.Transport = (*Client)(nil)

// Start dials the feed and pumps decoded events into sink until ctx is
// cancelled, Shutdown is called, or the reconnect budget is exhausted.
func (c *Client) Start(ctx context.Context, sink wirebridge.EventSink) error {
	schedule := newBackoff(c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay, c.cfg.MaxReconnectAttempts)

	for {
		c.setState(StateConnecting)

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateDisconnected)

				return ctx.Err()
			}
			if schedule.exhausted() {
				c.setState(StateDisconnected)

				return fmt.Errorf("dial %s: %w: %w", c.cfg.URL, wirebridge.ErrReconnectExhausted, err)
			}
			delay := schedule.next(time.Now())
			c.cfg.Logger.WarnContext(ctx, "dial failed, retrying",
				"url", c.cfg.URL,
				"retry_in", delay,
				"error", err,
			)
			if err := sleep(ctx, delay); err != nil {
				c.setState(StateDisconnected)

				return err
			}

			continue
		}

		if !c.adopt(conn) {
			// Shutdown raced the dial.
			_ = conn.Close()
			c.setState(StateDisconnected)

			return nil
		}
		schedule.markConnected(time.Now())
		c.setState(StateConnected)
		c.cfg.Logger.InfoContext(ctx, "connected", "url", c.cfg.URL)

		err = c.readPump(ctx, conn, sink)
		c.release(conn)

		switch {
		case ctx.Err() != nil:
			c.setState(StateDisconnected)

			return ctx.Err()
		case c.isClosed():
			c.setState(StateDisconnected)

			return nil
		}

		if schedule.exhausted() {
			c.setState(StateDisconnected)

			return fmt.Errorf("connection lost: %w: %w", wirebridge.ErrReconnectExhausted, err)
		}
		delay := schedule.next(time.Now())
		c.cfg.Logger.WarnContext(ctx, "connection lost, reconnecting",
			"retry_in", delay,
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			c.setState(StateDisconnected)

			return err
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}

		return nil, fmt.Errorf("dial: %w", err)
	}

	return conn, nil
}

// readPump reads frames until the connection fails. Malformed frames are
// logged and skipped; only transport-level errors end the pump.
func (c *Client) readPump(ctx context.Context, conn *websocket.Conn, sink wirebridge.EventSink) error {
	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	readDeadline := 2 * c.cfg.HeartbeatInterval
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		c.heartbeat(pumpCtx, conn)
	}()
	// Unblock the read when the context ends.
	go func() {
		<-pumpCtx.Done()
		_ = conn.Close()
	}()
	defer func() {
		cancel()
		<-heartbeatDone
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

		event, err := decodeEvent(data, time.Now().UTC())
		if err != nil {
			c.cfg.Logger.WarnContext(ctx, "dropping undecodable frame", "error", err)

			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			c.cfg.Logger.WarnContext(ctx, "dropping rejected event",
				"kind", event.Kind,
				"error", err,
			)
		}
	}
}

// heartbeat pings on a fixed cadence until ctx ends or a write fails.
func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Send frames and writes one command on the live connection.
func (c *Client) Send(ctx context.Context, command wirebridge.Command) error {
	data, err := encodeCommand(command)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("send %s: %w", command.Type, wirebridge.ErrNotConnected)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", command.Type, err)
	}

	return nil
}

// Shutdown closes the connection deliberately and stops the reconnect loop.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return wirebridge.ErrConnectionClosed
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(closeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	c.writeMu.Unlock()

	return conn.Close()
}

// adopt installs the live connection unless Shutdown already happened.
func (c *Client) adopt(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conn = conn

	return true
}

// release forgets conn if it is still the live connection, and closes it.
func (c *Client) release(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *Client) setState(state State) {
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(state)
	}
}

// sleep waits for the given duration or until ctx ends.
func sleep(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// errIsCancel reports whether err is plain context teardown.
func errIsCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
