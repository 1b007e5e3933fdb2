// Package bus defines the narrow interface the core consumes from the
// concrete pub/sub transport (spec §1: "the concrete MQTT client library" is
// an external collaborator, specified only through this interface).
package bus

import "context"

// Message is one payload delivered on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// SubscribeAck identifies one outstanding subscribe/unsubscribe request,
// fed into the mid-pool acknowledgement barrier (spec §4.6).
type SubscribeAck int

// Bus is the transport the core dispatches commands through and receives IDL
// announcements and response-channel traffic from. A concrete
// implementation (see mqttbus) owns the network connection; the core only
// ever talks to this interface, so it can be driven by a fake in tests.
type Bus interface {
	// Publish sends payload on topic.
	Publish(topic string, payload []byte) error

	// Subscribe requests delivery of messages on topic to the handler
	// registered via OnMessage, and returns an id that will later be
	// observed through OnSubscribeAck once the broker acknowledges it.
	Subscribe(topic string) (SubscribeAck, error)

	// Unsubscribe cancels a prior Subscribe.
	Unsubscribe(topic string) error

	// OnMessage registers the handler invoked for every delivered message,
	// on the bus's own network thread (spec §5 concurrency domain 2).
	OnMessage(func(Message))

	// OnSubscribeAck registers the handler invoked when the broker
	// acknowledges a Subscribe call.
	OnSubscribeAck(func(SubscribeAck))

	// OnError registers the handler invoked on unrecoverable transport
	// errors (spec §7 BusError).
	OnError(func(error))

	// Connect establishes the connection and blocks until connected or ctx
	// is done.
	Connect(ctx context.Context) error

	// Disconnect tears down the connection.
	Disconnect()
}

// DialOnce implements the non-interactive single-shot publish described in
// spec §4.7: construct a transient client, publish once upon connecting, and
// disconnect once the publish completes. dial is expected to return a Bus
// that has not yet had Connect called.
func DialOnce(ctx context.Context, dial func() (Bus, error), topic string, payload []byte) error {
	b, err := dial()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	b.OnError(func(err error) {
		select {
		case done <- err:
		default:
		}
	})

	connectedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := b.Connect(connectedCtx); err != nil {
		return err
	}
	if err := b.Publish(topic, payload); err != nil {
		b.Disconnect()
		return err
	}
	b.Disconnect()

	select {
	case err := <-done:
		return err
	default:
		return nil
	}
}
