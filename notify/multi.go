package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ruteri/document-registry/interfaces"
)

// MultiPublisher forwards events to every wrapped publisher. One failing
// publisher does not keep the others from receiving the events.
type MultiPublisher struct {
	publishers []interfaces.EventPublisher
}

// NewMultiPublisher wraps publishers, skipping nil entries.
func NewMultiPublisher(publishers ...interfaces.EventPublisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Len returns the number of wrapped publishers.
func (m *MultiPublisher) Len() int {
	return len(m.publishers)
}

func (m *MultiPublisher) Publish(ctx context.Context, events []interfaces.Event) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, events); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiPublisher) Name() string {
	names := make([]string, 0, len(m.publishers))
	for _, p := range m.publishers {
		names = append(names, p.Name())
	}
	return "multi[" + strings.Join(names, ",") + "]"
}
