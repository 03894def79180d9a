package registry

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/document-registry/interfaces"
)

// Emitter appends the registry's notifications to the running transition's
// sink. A nil sink discards them, which is what read-only queries use.
type Emitter struct {
	sink interfaces.EventSink
}

// NewEmitter creates an emitter writing to sink.
func NewEmitter(sink interfaces.EventSink) *Emitter {
	return &Emitter{sink: sink}
}

// Emit appends an arbitrary event.
func (e *Emitter) Emit(event interfaces.Event) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(event)
}

// DocumentRegistered emits documentRegistered(owner*, fingerprint*, timestamp).
func (e *Emitter) DocumentRegistered(owner common.Address, fp interfaces.Fingerprint, timestamp uint64) {
	e.Emit(interfaces.NewDocumentRegisteredEvent(owner, fp, timestamp))
}

// DocumentRevoked emits documentRevoked(owner*, fingerprint*).
func (e *Emitter) DocumentRevoked(owner common.Address, fp interfaces.Fingerprint) {
	e.Emit(interfaces.NewDocumentRevokedEvent(owner, fp))
}

// EventBuffer is an in-memory sink collecting the events of one transition.
type EventBuffer struct {
	events []interfaces.Event
}

// Emit implements interfaces.EventSink.
func (b *EventBuffer) Emit(event interfaces.Event) {
	b.events = append(b.events, event)
}

// Events returns the collected events in emission order.
func (b *EventBuffer) Events() []interfaces.Event {
	out := make([]interfaces.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Reset drops all collected events.
func (b *EventBuffer) Reset() {
	b.events = nil
}
