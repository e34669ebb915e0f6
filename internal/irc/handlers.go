package irc

// This file documents the event handlers the engine installs.
// The implementations are split across:
// - client.go: connection lifecycle, receive loop, raw/line handling
// - session.go: NickServ identification and deferred joins
// - commands.go: outbound commands and channel validation

/*
Handler Summary:

Wire Events (reinstalled on every connection, earlier handlers cleared):
- raw (handleRaw): bytes from one socket read
  - Appends to the receive buffer and extracts complete CRLF lines
  - Publishes "message" for each parsed line, then reacts below
- connected (session.onConnected): end of MOTD
  - Identifies with services if nickservPassword is set
  - Joins channels now, or parks them until NickServ confirms or the
    nickservTimeout timer fires

Line Reactions:
- PING: replies PONG <token> before the next line is handled
- 376/422 (RPL_ENDOFMOTD / ERR_NOMOTD): publishes "connected" once per connection
- NOTICE from the services nick containing "you are now identified" or
  "you are identified":
  - Marks the session identified (first match only)
  - Stops the timeout timer, publishes "nickserv_identified"
  - Joins the parked channels
- 471/473/474/475/477: publishes "join_error" with the channel, code and reason

Timer:
- NickServ timeout: publishes "nickserv_timeout" and joins the parked
  channels if nothing confirmed identification first

Teardown:
- Receive loop exit: stops the timer, publishes "disconnected", then
  reconnects after reconnectDelay or returns from Connect
*/
