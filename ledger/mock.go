package ledger

import (
	"context"
	"time"

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

// MockObserver mocks the Observer interface
type MockObserver struct {
	mock.Mock
}

// ObserveTransition mocks the ObserveTransition method
func (m *MockObserver) ObserveTransition(method string, status string, duration time.Duration) {
	m.Called(method, status, duration)
}

// ObserveState mocks the ObserveState method
func (m *MockObserver) ObserveState(height uint64, totalDocuments uint64) {
	m.Called(height, totalDocuments)
}
