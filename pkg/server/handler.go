package server

import (
	"github.com/realtime-ai/counseling-interpreter/pkg/events"
	"github.com/realtime-ai/counseling-interpreter/pkg/session"
)

// ConnectionHandler receives the lifecycle and traffic of every client
// connection. interpreter.Hub is the production implementation.
type ConnectionHandler interface {
	// Connect is called once the WebSocket upgrade has completed.
	Connect(peer session.Peer)

	// HandleEvent is called for every decoded JSON event.
	HandleEvent(peer session.Peer, event events.ClientEvent)

	// HandleAudio is called for every binary audio frame.
	HandleAudio(peer session.Peer, frame []byte)

	// Disconnect is called exactly once when the connection goes away.
	Disconnect(peer session.Peer)
}
