package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/encoding"

	"github.com/MyelinBots/ircsdk/internal/clock"
	"github.com/MyelinBots/ircsdk/internal/config"
	"github.com/MyelinBots/ircsdk/internal/event"
)

const recvChunkSize = 4096

// DialFunc opens the transport connection. It matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Option configures a Client
type Option func(*Client)

// WithBus shares an existing event bus
func WithBus(b *event.Bus) Option {
	return func(c *Client) { c.bus = b }
}

// WithLogger replaces the default stderr logger
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock replaces the wall clock used for timers and sleeps
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithDialer replaces the TCP dialer, including any configured proxy. TLS,
// when configured, is layered on top of the returned connection.
func WithDialer(d DialFunc) Option {
	return func(c *Client) { c.dial = d }
}

// Client owns one IRC connection: it connects with retry, runs the receive
// loop, frames and parses lines, publishes events and reconnects.
type Client struct {
	cfg     *config.Config
	bus     *event.Bus
	logger  *log.Logger
	clock   clock.Clock
	dial    DialFunc
	charset encoding.Encoding

	writeMu sync.Mutex
	conn    net.Conn

	runMu  sync.Mutex
	runCtx context.Context
	cancel context.CancelFunc

	framer  *Framer
	session *session
	state   atomic.Int32
	closed  atomic.Bool

	// registered is touched only by the receive loop
	registered bool
}

// NewClient creates a client. cfg may be nil, in which case Connect
// fails with ErrNoConfig.
func NewClient(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		cfg:   cfg,
		bus:   event.NewBus(),
		clock: clock.Real(),
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix:          "irc",
			ReportTimestamp: true,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg != nil {
		cfg.Defaults()
		charset, err := cfg.Charset()
		if err != nil {
			c.logger.Warn("Falling back to UTF-8", "err", err)
		}
		c.charset = charset
	}

	if c.dial == nil {
		c.dial = c.defaultDialer()
	}

	c.framer = NewFramer(c.charset)
	c.session = newSession(c)
	return c
}

// defaultDialer dials TCP directly, or through the configured SOCKS5 proxy
func (c *Client) defaultDialer() DialFunc {
	direct := &net.Dialer{}
	if c.cfg == nil {
		return direct.DialContext
	}
	u, err := c.cfg.ProxyURL()
	if err != nil || u == nil {
		return direct.DialContext
	}
	d, err := proxyDialer(u, direct)
	if err != nil {
		c.logger.Warn("Ignoring proxy", "proxy", u.Redacted(), "err", err)
		return direct.DialContext
	}
	c.logger.Info("Using proxy", "proxy", u.Redacted())
	return d
}

// Bus returns the event bus modules subscribe to
func (c *Client) Bus() *event.Bus {
	return c.bus
}

// Config returns the client's configuration
func (c *Client) Config() *config.Config {
	return c.cfg
}

// State returns the current lifecycle state
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	if old := State(c.state.Swap(int32(s))); old != s {
		c.logger.Debug("State changed", "from", old, "to", s)
	}
}

// Connect connects and runs the session until it ends. It blocks.
//
// It returns nil after Close, ErrNoConfig or a validation error without
// connecting, a *ConnectError when every attempt failed, the *ReadError that
// ended the session when auto-reconnect is off, or ctx's error.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg == nil {
		return ErrNoConfig
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.runMu.Lock()
	c.runCtx, c.cancel = ctx, cancel
	c.runMu.Unlock()

	c.logger.Info("Connecting", "config", c.cfg.String())
	err := c.tryConnect(ctx, c.cfg.ConnectAttempts, c.cfg.RetryWait())
	c.setState(StateTerminated)

	if c.closed.Load() {
		return nil
	}
	return err
}

// tryConnect connects with up to attempts tries, runs the session, and
// loops for as long as the reconnect policy asks to.
func (c *Client) tryConnect(ctx context.Context, attempts int, wait time.Duration) error {
	for {
		conn, err := c.dialWithRetry(ctx, attempts, wait)
		if err != nil {
			return err
		}

		readErr := c.serve(ctx, conn)

		reconnect, err := c.handleDisconnect(ctx, readErr)
		if !reconnect {
			return err
		}
	}
}

func (c *Client) dialWithRetry(ctx context.Context, attempts int, wait time.Duration) (net.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if c.closed.Load() {
			return nil, context.Canceled
		}

		c.setState(StateConnecting)
		c.logger.Infof("Attempt %d of %d", attempt, attempts)

		conn, err := c.open(ctx)
		if err == nil {
			c.logger.Info("Connection successful")
			return conn, nil
		}
		lastErr = err
		c.logger.Warn("Connection failed", "err", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < attempts {
			c.logger.Infof("Waiting for %s before retrying...", wait)
			if err := clock.Sleep(ctx, c.clock, wait); err != nil {
				return nil, err
			}
		}
	}

	c.setState(StateDisconnected)
	c.logger.Error("Maximum retry attempts reached, connection failed")
	return nil, &ConnectError{Addr: c.cfg.Addr(), Attempts: attempts, Err: lastErr}
}

// open dials, bounded by the connect timeout, and wraps the connection in
// TLS when configured.
func (c *Client) open(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout())
	defer cancel()

	conn, err := c.dial(dialCtx, "tcp", c.cfg.Addr())
	if err != nil {
		return nil, err
	}
	if !c.cfg.SSL {
		return conn, nil
	}

	tlsConn := tls.Client(conn, &tls.Config{
		ServerName: c.cfg.Host,
		// allowAnySSL accepts self-signed and mismatched certificates
		InsecureSkipVerify: c.cfg.AllowAnySSL,
	})
	if err := tlsConn.HandshakeContext(dialCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake failed: %w", err)
	}
	return tlsConn, nil
}

// serve registers on a fresh connection and runs the receive loop on it
func (c *Client) serve(ctx context.Context, conn net.Conn) error {
	_ = conn.SetDeadline(time.Time{})

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.setState(StateConnected)
	c.logger.Info("Connected to host", "addr", c.cfg.Addr())

	c.setupListeners()
	c.framer.Reset()
	c.registered = false

	if err := c.register(); err != nil {
		c.logger.Error("Registration failed", "err", err)
	}

	err := c.startRecv(conn)

	c.writeMu.Lock()
	c.conn = nil
	c.writeMu.Unlock()
	conn.Close()

	return err
}

// setupListeners installs the wire-level subscriptions. Earlier raw and
// connected handlers are cleared so reconnects never duplicate them.
func (c *Client) setupListeners() {
	EventRaw.Clear(c.bus)
	EventConnected.Clear(c.bus)

	EventRaw.Subscribe(c.bus, c.handleRaw)
	EventConnected.Subscribe(c.bus, c.session.onConnected)
}

func (c *Client) register() error {
	if c.cfg.Password != "" {
		if err := c.SendPassword(c.cfg.Password); err != nil {
			return err
		}
	}
	if err := c.SetUser(c.cfg.User, c.cfg.RealName); err != nil {
		return err
	}
	return c.SetNick(c.cfg.Nick)
}

// startRecv reads until the peer closes, the idle timeout passes or the
// read fails, publishing each chunk as EventRaw.
func (c *Client) startRecv(conn net.Conn) error {
	buf := make([]byte, recvChunkSize)
	idle := c.cfg.IdleTimeout()

	for {
		if idle > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(idle))
		}

		n, err := conn.Read(buf)
		if n > 0 {
			EventRaw.Publish(c.bus, append([]byte(nil), buf[:n]...))
		}
		if err == nil {
			continue
		}

		var netErr net.Error
		switch {
		case errors.Is(err, io.EOF):
			c.logger.Warn("Connection closed by the remote host")
			return &ReadError{Err: io.EOF}
		case errors.As(err, &netErr) && netErr.Timeout():
			c.logger.Warnf("No data received for %s, quitting...", idle)
			return &ReadError{Err: ErrIdleTimeout}
		default:
			if !c.closed.Load() {
				c.logger.Error("Read failed", "err", err)
			}
			return &ReadError{Err: err}
		}
	}
}

// handleDisconnect applies the reconnect policy after the receive loop
// ends. It reports whether to connect again.
func (c *Client) handleDisconnect(ctx context.Context, cause error) (bool, error) {
	c.session.stop()
	c.setState(StateDisconnected)
	EventDisconnected.Publish(c.bus, disconnectedStatus)

	if c.closed.Load() {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !c.cfg.AutoReconnect {
		return false, cause
	}

	delay := c.cfg.ReconnectWait()
	c.logger.Infof("Auto-reconnect enabled. Reconnecting in %s...", delay)
	if err := clock.Sleep(ctx, c.clock, delay); err != nil {
		return false, err
	}

	c.framer.Reset()
	c.session.reset()
	return true, nil
}

// handleRaw frames a received chunk and handles every completed line
func (c *Client) handleRaw(data []byte) {
	for _, msg := range c.framer.Feed(data) {
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg *Message) {
	EventMessage.Publish(c.bus, msg)

	switch msg.Command {
	case "PING":
		// a bare "PING token" is answered with that token
		token := msg.Trailing
		if !msg.HasTrailing {
			token = msg.Target
		}
		c.logger.Debug("PING", "token", token)
		if err := c.SendRaw("PONG " + token); err != nil {
			c.logger.Error("PONG failed", "err", err)
		}

	case RplEndOfMotd, ErrNoMotd:
		if c.registered {
			return
		}
		c.registered = true
		c.setState(StateRegistered)
		EventConnected.Publish(c.bus, connectedStatus)

	case "NOTICE":
		c.session.onNotice(msg)

	default:
		if !msg.IsNumeric() {
			return
		}
		if reason, ok := joinErrorReasons[msg.Command]; ok {
			channel := "unknown"
			if len(msg.Params) > 1 {
				channel = msg.Params[1]
			}
			c.logger.Warn("Join failed", "channel", channel, "code", msg.Command, "reason", reason)
			EventJoinError.Publish(c.bus, JoinError{Channel: channel, Code: msg.Command, Reason: reason})
		}
	}
}

// context returns the context of the running Connect, or Background
func (c *Client) context() context.Context {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.runCtx == nil {
		return context.Background()
	}
	return c.runCtx
}

// Close sends QUIT, closes the connection and stops Connect, including
// any auto-reconnect.
func (c *Client) Close() error {
	c.closed.Store(true)

	nick := ""
	if c.cfg != nil {
		nick = c.cfg.Nick
	}
	if err := c.SendRaw("QUIT :" + nick); err != nil && !errors.Is(err, ErrNotConnected) {
		c.logger.Warn("QUIT failed", "err", err)
	}

	c.writeMu.Lock()
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.writeMu.Unlock()

	c.runMu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.runMu.Unlock()

	return err
}
