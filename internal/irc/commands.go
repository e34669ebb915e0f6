package irc

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/encoding"

	"github.com/MyelinBots/ircsdk/internal/clock"
)

// joinDelay spaces out consecutive JOINs to stay under server flood limits
const joinDelay = 500 * time.Millisecond

const channelSigils = "#&+!"

// SendRaw writes line to the server, appending CRLF if it is missing
func (c *Client) SendRaw(line string) error {
	if !strings.HasSuffix(line, "\r\n") {
		line += "\r\n"
	}
	data, err := c.encode(line)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return nil
}

// Privmsg sends text to a channel or nick
func (c *Client) Privmsg(target, text string) error {
	return c.SendRaw(fmt.Sprintf("PRIVMSG %s :%s", target, text))
}

// SendPassword sends the connection password
func (c *Client) SendPassword(password string) error {
	return c.SendRaw("PASS " + password)
}

// SetUser sends the USER registration command
func (c *Client) SetUser(user, realname string) error {
	return c.SendRaw(fmt.Sprintf("USER %s 0 * :%s", user, realname))
}

// SetNick sends NICK
func (c *Client) SetNick(nick string) error {
	return c.SendRaw("NICK " + nick)
}

// NickServIdentify sends the configured identify message. It does nothing
// when password is empty.
func (c *Client) NickServIdentify(password string) error {
	if password == "" {
		return nil
	}
	c.logger.Info("Identifying with services", "service", c.cfg.ServicesName())
	return c.SendRaw("PRIVMSG " + c.cfg.IdentifyLine(password))
}

// Join validates channel and sends JOIN.
//
// An empty name is skipped with a warning. A name without a sigil gets a
// '#' prefix. A name containing whitespace or a comma is not sent; a
// JoinError with code INVALID is published instead. None of these return
// an error.
func (c *Client) Join(channel string) error {
	if channel == "" {
		c.warn("Empty channel name, skipping join")
		return nil
	}
	if !strings.ContainsRune(channelSigils, rune(channel[0])) {
		c.warn(fmt.Sprintf("Channel '%s' doesn't start with #, &, +, or ! - adding # prefix", channel))
		channel = "#" + channel
	}
	if strings.ContainsRune(channel, ',') || strings.IndexFunc(channel, unicode.IsSpace) >= 0 {
		c.logger.Error("Invalid channel name - contains spaces or commas", "channel", channel)
		EventJoinError.Publish(c.bus, JoinError{
			Channel: channel,
			Code:    JoinErrorInvalid,
			Reason:  "Channel name contains invalid characters",
		})
		return nil
	}
	return c.SendRaw("JOIN " + channel)
}

// joinChannels joins one channel at a time, pausing joinDelay between them
func (c *Client) joinChannels(channels []string) {
	if len(channels) > 0 {
		c.setState(StateJoining)
	}
	for i, channel := range channels {
		if i > 0 {
			if err := clock.Sleep(c.context(), c.clock, joinDelay); err != nil {
				return
			}
		}
		if err := c.Join(channel); err != nil {
			c.logger.Error("Join failed", "channel", channel, "err", err)
		}
	}
	c.setState(StateReady)
}

func (c *Client) warn(text string) {
	c.logger.Warn(text)
	EventWarning.Publish(c.bus, text)
}

func (c *Client) encode(line string) ([]byte, error) {
	if c.charset == nil {
		return []byte(line), nil
	}
	data, err := encoding.ReplaceUnsupported(c.charset.NewEncoder()).Bytes([]byte(line))
	if err != nil {
		return nil, fmt.Errorf("failed to encode line: %w", err)
	}
	return data, nil
}
