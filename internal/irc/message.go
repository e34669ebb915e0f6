package irc

import (
	"fmt"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

// Message is one parsed protocol line.
//
// Messages are shared by every handler of a publish and must be treated as
// read-only.
type Message struct {
	// Raw is the line as received, without the CRLF terminator
	Raw string

	// Prefix is the sender identity without the leading ':' ("" if absent)
	Prefix string

	// Command is the verb or 3-digit numeric, compared as a string
	Command string

	// Params are the middle parameters; the trailing parameter is not included
	Params []string

	// Trailing is the final ':'-introduced parameter. HasTrailing
	// distinguishes an empty trailing from none at all.
	Trailing    string
	HasTrailing bool

	// Sender is the nick part of Prefix ("" if there is no prefix)
	Sender string

	// Target is the first parameter, usually the channel or nick addressed.
	// The trailing counts as a parameter, so for "PING :irc.example.com"
	// Target is "irc.example.com". It is "" only when there are no
	// parameters at all.
	Target string

	// Body is every parameter after the first joined with spaces, which for
	// PRIVMSG and NOTICE is the message text. The ':' marking the trailing
	// is not part of it, but colons inside the text are kept. HasBody is
	// false when the line has fewer than two parameters.
	Body    string
	HasBody bool

	tags ircmsg.Message
}

// Parse splits one line (without CRLF) into a Message.
// It returns false for a line with no command.
func Parse(line string) (*Message, bool) {
	msg := &Message{Raw: line}
	rest := line

	if strings.HasPrefix(rest, "@") {
		// IRCv3 message tags
		if tagged, err := ircmsg.ParseLine(line); err == nil {
			msg.tags = tagged
		}
		rest = skipToken(rest)
	}

	first, rest := nextToken(rest)
	if first == "" {
		return nil, false
	}

	if strings.HasPrefix(first, ":") {
		if command, after := nextToken(rest); command != "" {
			msg.Prefix = first[1:]
			first, rest = command, after
		}
	}
	msg.Command = first

	for {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			break
		}
		if rest[0] == ':' {
			msg.Trailing = rest[1:]
			msg.HasTrailing = true
			break
		}
		var param string
		param, rest = nextToken(rest)
		msg.Params = append(msg.Params, param)
	}

	if msg.Prefix != "" {
		msg.Sender, _, _ = strings.Cut(msg.Prefix, "!")
	}

	all := msg.AllParams()
	if len(all) > 0 {
		msg.Target = all[0]
	}
	if len(all) > 1 {
		msg.Body = strings.Join(all[1:], " ")
		msg.HasBody = true
	}

	return msg, true
}

// AllParams returns Params followed by Trailing when one was given
func (m *Message) AllParams() []string {
	all := make([]string, 0, len(m.Params)+1)
	all = append(all, m.Params...)
	if m.HasTrailing {
		all = append(all, m.Trailing)
	}
	return all
}

// Tag returns the value of an IRCv3 message tag
func (m *Message) Tag(name string) (string, bool) {
	present, value := m.tags.GetTag(name)
	return value, present
}

// IsNumeric reports whether the command is a 3-digit reply code
func (m *Message) IsNumeric() bool {
	if len(m.Command) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if m.Command[i] < '0' || m.Command[i] > '9' {
			return false
		}
	}
	return true
}

func (m *Message) String() string {
	return fmt.Sprintf("Message: %s, Prefix: %s, Sender: %s, Target: %s, Command: %s, Params: %v, Trailing: %s",
		m.Raw, m.Prefix, m.Sender, m.Target, m.Command, m.Params, m.Trailing)
}

func nextToken(s string) (token, rest string) {
	s = strings.TrimLeft(s, " \t")
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

func skipToken(s string) string {
	_, rest := nextToken(s)
	return rest
}
