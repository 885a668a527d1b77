// Package testingutils holds fakes shared by the mcp tests.
package testingutils

import (
	"context"
	"sync"

	"github.com/therealnoof/mcp-server-lab/mcp/transport"
)

// MockTransport records every message sent through it and lets tests inject
// inbound messages.
type MockTransport struct {
	mu             sync.Mutex
	messages       []*transport.BaseJsonRpcMessage
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	closeHandler   func()
	errorHandler   func(error)
	started        bool
}

var _ transport.Transport = (*MockTransport)(nil)

// NewMockTransport creates a mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Start implements Transport.Start.
func (t *MockTransport) Start(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = true
	return nil
}

// Send records the outbound message.
func (t *MockTransport) Send(_ context.Context, message *transport.BaseJsonRpcMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, message)
	return nil
}

// Close implements Transport.Close.
func (t *MockTransport) Close() error {
	t.mu.Lock()
	handler := t.closeHandler
	t.mu.Unlock()
	if handler != nil {
		handler()
	}
	return nil
}

// SetCloseHandler implements Transport.SetCloseHandler.
func (t *MockTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler.
func (t *MockTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler.
func (t *MockTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}

// GetMessages returns a snapshot of the sent messages.
func (t *MockTransport) GetMessages() []*transport.BaseJsonRpcMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*transport.BaseJsonRpcMessage{}, t.messages...)
}

// SimulateMessage delivers an inbound message to the registered handler.
func (t *MockTransport) SimulateMessage(ctx context.Context, message *transport.BaseJsonRpcMessage) {
	t.mu.Lock()
	handler := t.messageHandler
	t.mu.Unlock()
	if handler != nil {
		handler(ctx, message)
	}
}
