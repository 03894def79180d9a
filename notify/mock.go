package notify

import (
	"context"

	"github.com/ruteri/document-registry/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockPublisher mocks the interfaces.EventPublisher interface
type MockPublisher struct {
	mock.Mock
}

// Publish mocks the Publish method
func (m *MockPublisher) Publish(ctx context.Context, events []interfaces.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// Name mocks the Name method
func (m *MockPublisher) Name() string {
	args := m.Called()
	return args.String(0)
}
