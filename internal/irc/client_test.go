package irc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MyelinBots/ircsdk/internal/clock"
	"github.com/MyelinBots/ircsdk/internal/config"
)

func TestPingPong(t *testing.T) {
	c, rc, _ := newTestClient(t, nil)

	EventRaw.Publish(c.bus, []byte("PING :server.example\r\n"))

	writes := rc.Writes()
	if len(writes) != 1 || writes[0] != "PONG server.example\r\n" {
		t.Errorf("Expected exactly one PONG, got %q", writes)
	}
}

func TestPingWithoutTrailing(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"PING server.example\r\n", "PONG server.example\r\n"},
		{"PING\r\n", "PONG \r\n"},
	}
	for _, tt := range tests {
		c, rc, _ := newTestClient(t, nil)
		EventRaw.Publish(c.bus, []byte(tt.line))
		writes := rc.Writes()
		if len(writes) != 1 || writes[0] != tt.want {
			t.Errorf("For %q expected %q, got %q", tt.line, tt.want, writes)
		}
	}
}

func TestPingAcrossChunks(t *testing.T) {
	c, rc, _ := newTestClient(t, nil)

	EventRaw.Publish(c.bus, []byte("PI"))
	EventRaw.Publish(c.bus, []byte("NG :a\r\nPING :b\r"))
	if n := len(rc.Writes()); n != 1 {
		t.Fatalf("Expected 1 PONG before the second line completes, got %d", n)
	}
	EventRaw.Publish(c.bus, []byte("\n"))

	writes := rc.Writes()
	if len(writes) != 2 || writes[0] != "PONG a\r\n" || writes[1] != "PONG b\r\n" {
		t.Errorf("Unexpected writes %q", writes)
	}
}

func TestMessagePublishedBeforeHandling(t *testing.T) {
	c, rc, _ := newTestClient(t, nil)

	var seen []string
	EventMessage.Subscribe(c.bus, func(msg *Message) {
		seen = append(seen, msg.Command)
		if len(rc.Writes()) != 0 {
			t.Errorf("Message subscribers should run before the PONG is sent")
		}
	})

	EventRaw.Publish(c.bus, []byte("PING :x\r\n"))
	if len(seen) != 1 || seen[0] != "PING" {
		t.Errorf("Expected PING on the message event, got %v", seen)
	}
}

func TestConnectedOncePerConnection(t *testing.T) {
	for _, numeric := range []string{RplEndOfMotd, ErrNoMotd} {
		c, _, _ := newTestClient(t, nil)

		var got []string
		EventConnected.Subscribe(c.bus, func(s string) { got = append(got, s) })

		EventRaw.Publish(c.bus, []byte(":srv "+numeric+" testbot :End\r\n"))
		EventRaw.Publish(c.bus, []byte(":srv "+numeric+" testbot :End\r\n"))

		if len(got) != 1 {
			t.Errorf("%s: expected 1 connected event, got %d", numeric, len(got))
		}
		if len(got) > 0 && got[0] != "End of /MOTD command." {
			t.Errorf("%s: unexpected payload %q", numeric, got[0])
		}
		if c.State() != StateReady {
			t.Errorf("%s: expected state ready with no channels, got %s", numeric, c.State())
		}
	}
}

func TestSetupListenersReplacesHandlers(t *testing.T) {
	c, rc, _ := newTestClient(t, nil)

	stale := 0
	EventConnected.Subscribe(c.bus, func(string) { stale++ })

	c.setupListeners()
	c.setupListeners()

	if n := c.bus.Count(EventRaw.Name()); n != 1 {
		t.Errorf("Expected 1 raw handler, got %d", n)
	}
	if n := c.bus.Count(EventConnected.Name()); n != 1 {
		t.Errorf("Expected 1 connected handler, got %d", n)
	}

	EventRaw.Publish(c.bus, []byte("PING :x\r\n"))
	if n := len(rc.Writes()); n != 1 {
		t.Errorf("Expected a single PONG, got %d", n)
	}

	EventConnected.Publish(c.bus, "x")
	if stale != 0 {
		t.Errorf("Cleared connected handler should not run")
	}
}

func TestJoinErrorNumerics(t *testing.T) {
	tests := []struct {
		line    string
		channel string
		code    string
		reason  string
	}{
		{":srv 471 testbot #full :Cannot join channel (+l)", "#full", ErrChannelIsFull, "Channel is full (+l)"},
		{":srv 473 testbot #inv :Cannot join channel (+i)", "#inv", ErrInviteOnlyChan, "Channel is invite-only (+i)"},
		{":srv 474 testbot #ban :Cannot join channel (+b)", "#ban", ErrBannedFromChan, "You are banned from this channel (+b)"},
		{":srv 475 testbot #key :Cannot join channel (+k)", "#key", ErrBadChannelKey, "Bad channel key (+k)"},
		{":srv 477 testbot #reg :You need to be identified", "#reg", ErrNeedReggedNick, "You need to register with services first"},
		{":srv 474 testbot", "unknown", ErrBannedFromChan, "You are banned from this channel (+b)"},
	}

	for _, tt := range tests {
		c, _, _ := newTestClient(t, nil)

		var got []JoinError
		EventJoinError.Subscribe(c.bus, func(je JoinError) { got = append(got, je) })

		EventRaw.Publish(c.bus, []byte(tt.line+"\r\n"))

		if len(got) != 1 {
			t.Fatalf("%q: expected 1 join error, got %d", tt.line, len(got))
		}
		want := JoinError{Channel: tt.channel, Code: tt.code, Reason: tt.reason}
		if got[0] != want {
			t.Errorf("%q: expected %+v, got %+v", tt.line, want, got[0])
		}
	}
}

func TestConnectNoConfig(t *testing.T) {
	c := NewClient(nil, WithLogger(testLogger()))
	if err := c.Connect(context.Background()); !errors.Is(err, ErrNoConfig) {
		t.Errorf("Expected ErrNoConfig, got %v", err)
	}
}

func TestConnectInvalidConfig(t *testing.T) {
	dialed := false
	c := NewClient(config.New("", 6667, "bot"),
		WithLogger(testLogger()),
		WithDialer(func(context.Context, string, string) (net.Conn, error) {
			dialed = true
			return nil, errors.New("unreachable")
		}),
	)
	if err := c.Connect(context.Background()); err == nil {
		t.Errorf("Expected a validation error")
	}
	if dialed {
		t.Errorf("Invalid config should not dial")
	}
}

func TestConnectRetriesExhausted(t *testing.T) {
	cfg := config.New("irc.example.com", 6667, "testbot")
	cfg.ConnectAttempts = 3
	cfg.ConnectRetryDelay = 2

	var dials atomic.Int32
	dialErr := errors.New("connection refused")
	fc := clock.Fake(epoch)
	c := NewClient(cfg,
		WithClock(fc),
		WithLogger(testLogger()),
		WithDialer(func(_ context.Context, network, addr string) (net.Conn, error) {
			dials.Add(1)
			if network != "tcp" || addr != "irc.example.com:6667" {
				t.Errorf("Unexpected dial %s %s", network, addr)
			}
			return nil, dialErr
		}),
	)

	err := c.Connect(context.Background())

	if n := dials.Load(); n != 3 {
		t.Errorf("Expected 3 dial attempts, got %d", n)
	}
	sleeps := fc.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 2*time.Second || sleeps[1] != 2*time.Second {
		t.Errorf("Expected two 2s waits, got %v", sleeps)
	}

	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("Expected *ConnectError, got %v", err)
	}
	if connErr.Attempts != 3 {
		t.Errorf("Expected 3 attempts recorded, got %d", connErr.Attempts)
	}
	if !errors.Is(err, ErrRetriesExhausted) || !errors.Is(err, dialErr) {
		t.Errorf("ConnectError should wrap both causes: %v", err)
	}
	if c.State() != StateTerminated {
		t.Errorf("Expected terminated state, got %s", c.State())
	}
}

func TestConnectRetryThenSession(t *testing.T) {
	cfg := config.New("irc.example.com", 6667, "testbot")
	cfg.Channels = []string{"#one", "two"}
	cfg.Password = "serverpass"
	cfg.ConnectAttempts = 3
	cfg.ConnectRetryDelay = 2

	servers := make(chan net.Conn, 1)
	var dials atomic.Int32
	fc := clock.Fake(epoch)
	c := NewClient(cfg,
		WithClock(fc),
		WithLogger(testLogger()),
		WithDialer(func(context.Context, string, string) (net.Conn, error) {
			if dials.Add(1) < 3 {
				return nil, errors.New("connection refused")
			}
			client, server := net.Pipe()
			servers <- server
			return client, nil
		}),
	)

	var disconnected, warnings int
	EventDisconnected.Subscribe(c.bus, func(string) { disconnected++ })
	EventWarning.Subscribe(c.bus, func(string) { warnings++ })

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()

	s := newFakeServer(t, <-servers)
	s.expect("PASS serverpass\r\n")
	s.expect("USER testbot 0 * :testbot\r\n")
	s.expect("NICK testbot\r\n")
	s.send(":srv 001 testbot :Welcome")
	s.send(":srv 376 testbot :End of /MOTD command.")
	s.expect("JOIN #one\r\n")
	s.expect("JOIN #two\r\n")
	s.send("PING :keepalive")
	s.expect("PONG keepalive\r\n")
	s.conn.Close()

	var err error
	select {
	case err = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Connect did not return after the server closed")
	}

	var readErr *ReadError
	if !errors.As(err, &readErr) || !errors.Is(err, io.EOF) {
		t.Errorf("Expected ReadError wrapping EOF, got %v", err)
	}
	if dials.Load() != 3 {
		t.Errorf("Expected 3 dials, got %d", dials.Load())
	}
	// two 2s retry waits, then one pause between the joins
	sleeps := fc.Sleeps()
	if len(sleeps) != 3 || sleeps[2] != joinDelay {
		t.Errorf("Unexpected sleeps %v", sleeps)
	}
	if disconnected != 1 {
		t.Errorf("Expected 1 disconnected event, got %d", disconnected)
	}
	if c.State() != StateTerminated {
		t.Errorf("Expected terminated state, got %s", c.State())
	}
	if warnings != 1 {
		t.Errorf("Expected a warning for the unprefixed channel, got %d", warnings)
	}
}

func TestAutoReconnect(t *testing.T) {
	cfg := config.New("irc.example.com", 6667, "testbot")
	cfg.AutoReconnect = true
	cfg.ReconnectDelay = 7

	servers := make(chan net.Conn, 2)
	fc := clock.Fake(epoch)
	c := NewClient(cfg,
		WithClock(fc),
		WithLogger(testLogger()),
		WithDialer(func(context.Context, string, string) (net.Conn, error) {
			client, server := net.Pipe()
			servers <- server
			return client, nil
		}),
	)

	var connected, disconnected int
	EventConnected.Subscribe(c.bus, func(string) { connected++ })
	EventDisconnected.Subscribe(c.bus, func(string) { disconnected++ })

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()

	s1 := newFakeServer(t, <-servers)
	s1.expect("USER ")
	s1.expect("NICK ")
	s1.send(":srv 422 testbot :MOTD File is missing")
	s1.conn.Close()

	s2 := newFakeServer(t, <-servers)
	s2.expect("USER ")
	s2.expect("NICK ")
	s2.send(":srv 376 testbot :End of /MOTD command.")
	s2.send("PING :again")
	s2.expect("PONG again\r\n")

	go c.Close()
	s2.expect("QUIT :testbot\r\n")
	s2.drain()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after Close, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Connect did not return after Close")
	}

	sleeps := fc.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != 7*time.Second {
		t.Errorf("Expected a single 7s reconnect wait, got %v", sleeps)
	}
	if n := c.bus.Count(EventRaw.Name()); n != 1 {
		t.Errorf("Reconnect should not duplicate raw handlers, got %d", n)
	}
	if disconnected != 2 {
		t.Errorf("Expected 2 disconnected events, got %d", disconnected)
	}
	// the first connected subscriber is cleared by setupListeners on connect
	if connected != 0 {
		t.Errorf("Expected pre-connect connected handler to be cleared, got %d calls", connected)
	}
}

func TestIdleTimeout(t *testing.T) {
	cfg := config.New("irc.example.com", 6667, "testbot")
	cfg.NoDataTimeout = 1

	servers := make(chan net.Conn, 1)
	c := NewClient(cfg,
		WithClock(clock.Fake(epoch)),
		WithLogger(testLogger()),
		WithDialer(func(context.Context, string, string) (net.Conn, error) {
			client, server := net.Pipe()
			servers <- server
			return client, nil
		}),
	)

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()

	s := newFakeServer(t, <-servers)
	s.expect("USER ")
	s.expect("NICK ")

	select {
	case err := <-done:
		if !errors.Is(err, ErrIdleTimeout) {
			t.Errorf("Expected ErrIdleTimeout, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Idle timeout did not end the session")
	}
}

func TestConnectContextCanceled(t *testing.T) {
	servers := make(chan net.Conn, 1)
	c := NewClient(config.New("irc.example.com", 6667, "testbot"),
		WithClock(clock.Fake(epoch)),
		WithLogger(testLogger()),
		WithDialer(func(context.Context, string, string) (net.Conn, error) {
			client, server := net.Pipe()
			servers <- server
			return client, nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Connect(ctx) }()

	s := newFakeServer(t, <-servers)
	s.expect("USER ")
	s.expect("NICK ")
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Connect did not return after cancel")
	}
}

func TestSendNotConnected(t *testing.T) {
	c := NewClient(config.New("irc.example.com", 6667, "testbot"), WithLogger(testLogger()))
	if err := c.Privmsg("#c", "hi"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close without a connection should succeed, got %v", err)
	}
}
