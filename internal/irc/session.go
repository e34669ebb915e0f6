package irc

import (
	"strings"
	"sync"
	"time"

	"github.com/MyelinBots/ircsdk/internal/clock"
)

// identifiedPhrases are the services replies that confirm identification
var identifiedPhrases = []string{
	"you are now identified",
	"you are identified",
}

// session runs the post-registration handshake: services identification
// and channel joins.
//
// The pending channel set is joined exactly once, by whichever of the
// confirmation NOTICE and the timeout gets mu first.
type session struct {
	c *Client

	mu         sync.Mutex
	identified bool
	pending    []string
	timer      clock.Timer
	// generation changes on every disconnect so that a timer from an
	// earlier connection cannot join on a later one
	generation uint64
}

func newSession(c *Client) *session {
	return &session{c: c}
}

func (s *session) onConnected(string) {
	cfg := s.c.cfg

	if err := s.c.NickServIdentify(cfg.NickServPassword); err != nil {
		s.c.logger.Error("Identify failed", "err", err)
	}

	channels := cfg.ChannelList()
	if !cfg.WaitForServices() {
		s.c.joinChannels(channels)
		return
	}

	timeout := cfg.NickServWaitTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s.mu.Lock()
	if s.identified {
		s.mu.Unlock()
		s.c.joinChannels(channels)
		return
	}
	s.pending = channels
	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.generation
	s.timer = s.c.clock.AfterFunc(timeout, func() { s.onTimeout(gen, timeout) })
	s.mu.Unlock()

	s.c.setState(StateIdentifying)
	s.c.logger.Infof("Waiting for NickServ identification before joining channels (timeout: %s)...", timeout)
}

func (s *session) onTimeout(gen uint64, timeout time.Duration) {
	s.mu.Lock()
	if gen != s.generation || s.identified || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	channels := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	s.c.logger.Warnf("NickServ timeout after %s - joining channels anyway", timeout)
	EventNickServTimeout.Publish(s.c.bus, int(timeout/time.Second))
	s.c.joinChannels(channels)
}

func (s *session) onNotice(msg *Message) {
	if !s.isConfirmation(msg) {
		return
	}

	s.mu.Lock()
	if s.identified {
		s.mu.Unlock()
		return
	}
	s.identified = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	channels := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.c.logger.Info("NickServ identification successful")
	EventNickServIdentified.Publish(s.c.bus, true)
	if len(channels) > 0 {
		s.c.joinChannels(channels)
	}
}

// isConfirmation matches a NOTICE from the services nick that reports a
// successful identification
func (s *session) isConfirmation(msg *Message) bool {
	if msg.Command != "NOTICE" || msg.Prefix == "" {
		return false
	}

	service, _, _ := strings.Cut(strings.ToLower(s.c.cfg.ServicesName()), "@")
	if service == "" {
		service = "nickserv"
	}
	if !strings.Contains(strings.ToLower(msg.Prefix), service) {
		return false
	}

	text := strings.ToLower(strings.Join(msg.AllParams(), " "))
	for _, phrase := range identifiedPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// stop cancels the pending timer and invalidates any timer callback
// already in flight
func (s *session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// reset clears per-connection state before reconnecting
func (s *session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identified = false
	s.pending = nil
}

// Identified reports whether services confirmed identification on this connection
func (c *Client) Identified() bool {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	return c.session.identified
}
