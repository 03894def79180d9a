package notify

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/document-registry/interfaces"
)

// Message is the wire form of a published event.
type Message struct {
	Kind        interfaces.EventKind `json:"kind"`
	Owner       common.Address       `json:"owner"`
	Fingerprint string               `json:"fingerprint"`
	Timestamp   *uint64              `json:"timestamp,omitempty"`
	Topics      []common.Hash        `json:"topics"`
}

// NewMessage flattens an event into its wire form.
func NewMessage(ev interfaces.Event) (Message, error) {
	owner, ok := ev.Owner()
	if !ok {
		return Message{}, fmt.Errorf("event %s has no owner", ev.Kind)
	}
	fp, ok := ev.Fingerprint()
	if !ok {
		return Message{}, fmt.Errorf("event %s has no fingerprint", ev.Kind)
	}

	msg := Message{
		Kind:        ev.Kind,
		Owner:       owner,
		Fingerprint: fp.String(),
		Topics:      ev.Topics(),
	}
	if ts, ok := ev.Timestamp(); ok {
		msg.Timestamp = &ts
	}
	return msg, nil
}

func encodeMessage(ev interfaces.Event) (Message, []byte, error) {
	msg, err := NewMessage(ev)
	if err != nil {
		return Message{}, nil, err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Message{}, nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return msg, payload, nil
}
