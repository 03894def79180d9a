package registry

import (
	"github.com/ruteri/document-registry/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockState mocks the interfaces.State key-value view
type MockState struct {
	mock.Mock
}

// Has mocks the Has method
func (m *MockState) Has(key []byte) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

// Get mocks the Get method
func (m *MockState) Get(key []byte) ([]byte, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Put mocks the Put method
func (m *MockState) Put(key []byte, value []byte) error {
	args := m.Called(key, value)
	return args.Error(0)
}

// MockEventSink mocks the interfaces.EventSink interface
type MockEventSink struct {
	mock.Mock
}

// Emit mocks the Emit method
func (m *MockEventSink) Emit(event interfaces.Event) {
	m.Called(event)
}
