package irc

// State is a step of the connection lifecycle:
// Disconnected → Connecting → Connected → Registered → (Identifying →)
// Joining → Ready → Disconnected, or Terminated once Connect returns.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateRegistered
	StateIdentifying
	StateJoining
	StateReady
	StateTerminated
)

var stateNames = [...]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateRegistered:   "registered",
	StateIdentifying:  "identifying",
	StateJoining:      "joining",
	StateReady:        "ready",
	StateTerminated:   "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
