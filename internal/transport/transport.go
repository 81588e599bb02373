// Package transport defines the contract between the network listeners
// and the session core. Each channel (websocket, UDP) feeds lifecycle
// events and raw messages into a Handler; outbound traffic flows the
// other way through the channel implementations.
package transport

// Handler receives connection lifecycle events and raw inbound
// messages. Implementations must tolerate concurrent calls: each
// connection is serviced by its own goroutine.
type Handler interface {
	HandleConnect(connID string)
	HandleDisconnect(connID string)
	HandleMessage(connID string, raw []byte)
}
