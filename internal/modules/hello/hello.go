// Package hello answers "hello <botnick>" with a greeting.
package hello

import (
	"strings"

	"github.com/MyelinBots/ircsdk/internal/event"
	"github.com/MyelinBots/ircsdk/internal/irc"
	"github.com/MyelinBots/ircsdk/internal/module"
)

type Hello struct {
	*module.Module

	sender module.Sender
	nick   string
}

// New creates the module. nick is the bot's own nick, which the greeting
// must name.
func New(bus *event.Bus, sender module.Sender, nick string) *Hello {
	h := &Hello{sender: sender, nick: nick}
	h.Module = module.New(bus, "", "hello", h)
	return h
}

func (h *Hello) HandleCommand(msg *irc.Message, cmd module.Command) error {
	if !h.Matches(msg, cmd) || !strings.EqualFold(cmd.Arg(0), h.nick) {
		return nil
	}
	return h.sender.Privmsg(module.ReplyTarget(msg), "Hello, "+msg.Sender)
}

func (h *Hello) HandleError(msg *irc.Message, cmd module.Command, err error) {
	h.LogError(msg, cmd, err)
}
