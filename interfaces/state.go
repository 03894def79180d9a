package interfaces

import "context"

// StateReader reads from the durable key-value state.
// Get is only called for keys Has reported present.
type StateReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// StateWriter writes to the durable key-value state.
type StateWriter interface {
	Put(key []byte, value []byte) error
}

// State is the read/write key-value view a transition runs against.
// Atomicity and rollback are the host's responsibility.
type State interface {
	StateReader
	StateWriter
}

// EventSink receives the notifications of the running transition.
type EventSink interface {
	Emit(event Event)
}

// EventPublisher forwards committed events to an external notification
// stream (Kafka, Redis pub/sub, ...).
type EventPublisher interface {
	Publish(ctx context.Context, events []Event) error
	Name() string
}
