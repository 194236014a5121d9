// Package bus defines the message-bus contract the core dispatches RPCs
// through: fire-and-forget and request/reply, keyed by a topic derived
// from (network_topic, host) the way nova-network's own rpc layer routes
// per-host queues. The core never talks to a transport directly — only
// through this interface — so a real deployment can swap in NATS/AMQP/etc.
// without touching internal/rpc or internal/policy.
package bus

import "context"

// Request is one dispatched call: a method name plus its arguments, mirroring
// the source's {method, args} RPC envelope.
type Request struct {
	Method string
	Args   map[string]interface{}
}

// Response is a request/reply result.
type Response struct {
	Result map[string]interface{}
}

// Handler answers a Request delivered to a topic/host this process has
// registered for.
type Handler func(ctx context.Context, req Request) (Response, error)

// Bus is the narrow contract internal/rpc issues fan-out calls against.
type Bus interface {
	// Register binds handler to receive every Request dispatched to
	// (topic, host). A process registers once per host identity it
	// answers for — normally just its own configured host, but tests
	// simulating several network-hosts in one process may register
	// more than one.
	Register(topic, host string, handler Handler)

	// Call dispatches req to (topic, host) and blocks for the reply, the
	// request/reply variant internal/rpc's fan-out uses for cross-host
	// fixed-IP allocation.
	Call(ctx context.Context, topic, host string, req Request) (Response, error)

	// Cast dispatches req without waiting for a reply.
	Cast(ctx context.Context, topic, host string, req Request) error

	// Close stops accepting new work and waits for in-flight handlers
	// to finish.
	Close()
}

// QueueNameFor derives the topic/host-scoped queue name the Store's
// QueueGetFor normally resolves; Bus implementations that don't need a
// separate naming scheme can use this directly.
func QueueNameFor(topic, host string) string {
	return topic + "." + host
}
