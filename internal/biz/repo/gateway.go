package repo

import (
	"context"
	"time"

	"github.com/cyberops7/garagebot/internal/biz/domain"
)

// Gateway is the chat platform's persistent real-time connection.
// The core consumes mapped domain events; the wire protocol is the
// adapter's concern.
type Gateway interface {
	// Connect opens the gateway connection. An authentication failure is
	// returned as a domain.FatalError.
	Connect(ctx context.Context) error

	// OnEvent registers the single event handler. Must be called before
	// Connect.
	OnEvent(handler func(domain.Event))

	// Alive reports whether the gateway connection is established and
	// receiving heartbeats
	Alive() bool

	// Latency returns the current heartbeat round-trip time
	Latency() time.Duration

	// BotUser returns the connected bot account's display name
	BotUser() string

	// Disconnect closes the gateway connection
	Disconnect(ctx context.Context) error
}
