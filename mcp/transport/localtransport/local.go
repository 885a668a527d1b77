// Package localtransport provides an in-process transport pair, used to wire
// an MCP client to a server inside the same binary and in tests.
package localtransport

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/therealnoof/mcp-server-lab/mcp/transport"
)

// Transport is one end of an in-process pair. Messages sent on one end are
// delivered to the peer's message handler on a separate goroutine.
type Transport struct {
	peer *Transport

	mu             sync.RWMutex
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
	closed         bool
}

// NewPair creates two connected transport ends.
func NewPair() (*Transport, *Transport) {
	a := &Transport{}
	b := &Transport{}
	a.peer = b
	b.peer = a
	return a, b
}

// Start implements Transport.Start. The pair is connected at construction, so
// there is nothing to do.
func (t *Transport) Start(ctx context.Context) error {
	return nil
}

// Send delivers the message to the peer's handler.
func (t *Transport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return errors.New("transport closed")
	}

	t.peer.mu.RLock()
	handler := t.peer.messageHandler
	closed = t.peer.closed
	t.peer.mu.RUnlock()

	if closed {
		return errors.New("peer transport closed")
	}
	if handler == nil {
		return errors.New("peer has no message handler")
	}

	go handler(ctx, message)
	return nil
}

// Close closes both ends of the pair.
func (t *Transport) Close() error {
	t.closeEnd()
	t.peer.closeEnd()
	return nil
}

func (t *Transport) closeEnd() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	handler := t.closeHandler
	t.mu.Unlock()

	if handler != nil {
		handler()
	}
}

// SetCloseHandler implements Transport.SetCloseHandler.
func (t *Transport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler.
func (t *Transport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler.
func (t *Transport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}
