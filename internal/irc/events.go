package irc

import "github.com/MyelinBots/ircsdk/internal/event"

// Events published on the client's bus.
var (
	// EventRaw carries each chunk read from the socket
	EventRaw = event.NewTopic[[]byte]("raw")

	// EventMessage carries every parsed line
	EventMessage = event.NewTopic[*Message]("message")

	// EventConnected fires once per connection at the end of the MOTD (376 or 422)
	EventConnected = event.NewTopic[string]("connected")

	// EventDisconnected fires when the receive loop ends
	EventDisconnected = event.NewTopic[string]("disconnected")

	// EventNickServIdentified fires on the first services confirmation
	EventNickServIdentified = event.NewTopic[bool]("nickserv_identified")

	// EventNickServTimeout carries the timeout in seconds when joins
	// proceed without a services confirmation
	EventNickServTimeout = event.NewTopic[int]("nickserv_timeout")

	// EventJoinError reports rejected channel names and join failure numerics
	EventJoinError = event.NewTopic[JoinError]("join_error")

	// EventWarning carries non-fatal problems such as a normalized channel name
	EventWarning = event.NewTopic[string]("warning")
)

// Numerics the engine reacts to
const (
	RplEndOfMotd      = "376"
	ErrNoMotd         = "422"
	ErrChannelIsFull  = "471"
	ErrInviteOnlyChan = "473"
	ErrBannedFromChan = "474"
	ErrBadChannelKey  = "475"
	ErrNeedReggedNick = "477"

	// JoinErrorInvalid is the JoinError code for a malformed channel name
	JoinErrorInvalid = "INVALID"
)

const (
	connectedStatus    = "End of /MOTD command."
	disconnectedStatus = "Connection lost"
)

// JoinError is the payload of EventJoinError
type JoinError struct {
	Channel string
	Code    string
	Reason  string
}

var joinErrorReasons = map[string]string{
	ErrChannelIsFull:  "Channel is full (+l)",
	ErrInviteOnlyChan: "Channel is invite-only (+i)",
	ErrBannedFromChan: "You are banned from this channel (+b)",
	ErrBadChannelKey:  "Bad channel key (+k)",
	ErrNeedReggedNick: "You need to register with services first",
}
