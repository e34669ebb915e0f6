// Package quit disconnects the bot on "!quit".
package quit

import (
	"github.com/MyelinBots/ircsdk/internal/event"
	"github.com/MyelinBots/ircsdk/internal/irc"
	"github.com/MyelinBots/ircsdk/internal/module"
)

type Quit struct {
	*module.Module

	sender module.Sender
}

func New(bus *event.Bus, sender module.Sender) *Quit {
	q := &Quit{sender: sender}
	q.Module = module.New(bus, "!", "quit", q)
	return q
}

func (q *Quit) HandleCommand(msg *irc.Message, cmd module.Command) error {
	if !q.Matches(msg, cmd) {
		return nil
	}
	q.Logger.Info("Quit requested", "by", msg.Prefix)
	return q.sender.Close()
}

func (q *Quit) HandleError(msg *irc.Message, cmd module.Command, err error) {
	q.LogError(msg, cmd, err)
}
