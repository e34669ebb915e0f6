// Package module adapts parsed messages into commands for bot modules.
//
// A Module listens on the message event, splits each message body into a
// Command and hands it to its Handler. Errors and panics from the Handler
// go to the Handler's HandleError and never reach the bus, so one failing
// module cannot stop delivery to the others.
package module

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/MyelinBots/ircsdk/internal/event"
	"github.com/MyelinBots/ircsdk/internal/irc"
)

// Handler implements a module's behavior
type Handler interface {
	// HandleCommand is called for every message that has a body. Matching
	// is up to the handler; see Module.Matches.
	HandleCommand(msg *irc.Message, cmd Command) error

	// HandleError receives what HandleCommand returned, or a *Fault if it
	// panicked
	HandleError(msg *irc.Message, cmd Command, err error)
}

// Sender is the part of the client modules reply through
type Sender interface {
	Privmsg(target, text string) error
	SendRaw(line string) error
	Close() error
}

// Fault is a recovered panic from a HandleCommand call
type Fault struct {
	Value any
	Stack []byte
}

func (f *Fault) Error() string {
	return fmt.Sprintf("handler panic: %v", f.Value)
}

// Unwrap returns the panic value when it is an error
func (f *Fault) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}

// Module binds a Handler to a trigger word on a bus
type Module struct {
	// Fantasy is the command prefix, e.g. "!". It may be empty.
	Fantasy string
	// Word is the command name without the prefix
	Word string

	Logger *log.Logger

	bus       *event.Bus
	handler   Handler
	id        event.ID
	listening bool
}

// New creates a module triggered by fantasy+word. It does not listen until
// StartListening is called.
func New(bus *event.Bus, fantasy, word string, h Handler) *Module {
	prefix := fantasy + word
	if prefix == "" {
		prefix = "module"
	}
	return &Module{
		Fantasy: fantasy,
		Word:    word,
		Logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix:          prefix,
			ReportTimestamp: true,
		}),
		bus:     bus,
		handler: h,
	}
}

// Trigger returns the full command token, prefix included
func (m *Module) Trigger() string {
	return m.Fantasy + m.Word
}

// Matches reports whether msg is a PRIVMSG whose first word is the trigger
func (m *Module) Matches(msg *irc.Message, cmd Command) bool {
	return msg.Command == "PRIVMSG" && cmd.Name == m.Trigger()
}

// StartListening subscribes the module to parsed messages. Calling it
// again has no effect.
func (m *Module) StartListening() {
	if m.listening {
		return
	}
	m.id = irc.EventMessage.Subscribe(m.bus, m.Dispatch)
	m.listening = true
}

// StopListening removes the module's subscription
func (m *Module) StopListening() {
	if !m.listening {
		return
	}
	irc.EventMessage.Unsubscribe(m.bus, m.id)
	m.listening = false
}

// Dispatch turns msg into a Command and runs the handler. Messages without
// a body are skipped.
func (m *Module) Dispatch(msg *irc.Message) {
	if msg == nil || !msg.HasBody {
		return
	}
	cmd := ParseCommand(msg.Body)

	if err := m.call(msg, cmd); err != nil {
		m.report(msg, cmd, err)
	}
}

func (m *Module) call(msg *irc.Message, cmd Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Fault{Value: r, Stack: debug.Stack()}
		}
	}()
	return m.handler.HandleCommand(msg, cmd)
}

// report hands err to HandleError. A panic there is logged and dropped.
func (m *Module) report(msg *irc.Message, cmd Command, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.Logger.Error("Error handler panicked", "command", cmd.Name, "panic", r)
		}
	}()
	m.handler.HandleError(msg, cmd, err)
}

// LogError is a HandleError implementation that logs err
func (m *Module) LogError(msg *irc.Message, cmd Command, err error) {
	m.Logger.Error("Command failed", "command", cmd.Name, "from", msg.Sender, "err", err)
	if f, ok := err.(*Fault); ok {
		m.Logger.Debug("Panic stack", "stack", string(f.Stack))
	}
}

// ReplyTarget is where a reply to msg goes: the channel it was sent to,
// or the sender for a private message.
func ReplyTarget(msg *irc.Message) string {
	if msg.Target != "" && strings.ContainsAny(msg.Target[:1], "#&+!") {
		return msg.Target
	}
	return msg.Sender
}
