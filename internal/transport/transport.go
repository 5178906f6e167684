// Package transport provides the websocket pub/sub layer: it issues
// opaque connection identifiers, delivers inbound client events in
// per-connection order, and offers send-to-one and send-to-all
// delivery for the coordination core.
package transport

import "encoding/json"

// Handler consumes transport lifecycle notifications and client events.
// The hub invokes HandleEvent in per-connection order and calls
// HandleDisconnect exactly once per connection.
type Handler interface {
	HandleConnect(connID string)
	HandleEvent(connID, name string, data json.RawMessage)
	HandleDisconnect(connID, reason string)
}

// Envelope is the JSON frame exchanged with clients in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outEnvelope is the outbound counterpart of Envelope; Data is encoded
// during marshalling rather than pre-encoded.
type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}
