package irc

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/MyelinBots/ircsdk/internal/clock"
	"github.com/MyelinBots/ircsdk/internal/config"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// recordConn captures writes; reads are not supported
type recordConn struct {
	net.Conn

	mu     sync.Mutex
	writes []string
	closed bool
}

func (r *recordConn) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, string(p))
	return len(p), nil
}

func (r *recordConn) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordConn) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func (r *recordConn) count(prefix string) int {
	n := 0
	for _, w := range r.Writes() {
		if strings.HasPrefix(w, prefix) {
			n++
		}
	}
	return n
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// newTestClient returns a client wired to a recording connection, with its
// wire listeners installed as they are after a successful connect
func newTestClient(t *testing.T, cfg *config.Config) (*Client, *recordConn, *clock.FakeClock) {
	t.Helper()
	if cfg == nil {
		cfg = config.New("irc.example.com", 6667, "testbot")
	}
	fc := clock.Fake(epoch)
	c := NewClient(cfg, WithClock(fc), WithLogger(testLogger()))
	rc := &recordConn{}
	c.conn = rc
	c.setupListeners()
	return c, rc, fc
}

// fakeServer is the far end of a net.Pipe
type fakeServer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func newFakeServer(t *testing.T, conn net.Conn) *fakeServer {
	return &fakeServer{t: t, conn: conn, r: bufio.NewReader(conn)}
}

// expect reads one line and fails unless it starts with prefix
func (s *fakeServer) expect(prefix string) string {
	s.t.Helper()
	_ = s.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	line, err := s.r.ReadString('\n')
	if err != nil {
		s.t.Fatalf("Expected line starting with %q, got error %v", prefix, err)
	}
	if !strings.HasPrefix(line, prefix) {
		s.t.Fatalf("Expected line starting with %q, got %q", prefix, line)
	}
	return line
}

func (s *fakeServer) send(line string) {
	s.t.Helper()
	_ = s.conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	if _, err := io.WriteString(s.conn, line+"\r\n"); err != nil {
		s.t.Fatalf("Server write failed: %v", err)
	}
}

// drain reads until the client closes its end
func (s *fakeServer) drain() {
	_ = s.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _ = io.Copy(io.Discard, s.r)
}
