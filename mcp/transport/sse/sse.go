// Package sse implements MCP over Server-Sent Events: the server keeps a
// long-lived event stream per session and receives client messages on a
// companion POST endpoint.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/therealnoof/mcp-server-lab/mcp/transport"
)

// SSETransport is the server side of one SSE session. Outbound messages are
// written to the event stream; inbound messages arrive via HandleMessage from
// the POST endpoint.
type SSETransport struct {
	messageURL string
	w          http.ResponseWriter
	flusher    http.Flusher
	sessionID  string

	mu             sync.Mutex
	started        bool
	closed         bool
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
}

// NewSSETransport creates a transport writing events to w. messageURL is the
// path clients POST their messages to; the session query parameter is added
// in the endpoint event.
func NewSSETransport(messageURL string, w http.ResponseWriter) (*SSETransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	return &SSETransport{
		messageURL: messageURL,
		w:          w,
		flusher:    flusher,
		sessionID:  uuid.NewString(),
	}, nil
}

// SessionID returns the session identifier clients use to address this
// stream.
func (t *SSETransport) SessionID() string {
	return t.sessionID
}

// Start writes the SSE headers and the endpoint event telling the client
// where to POST messages for this session.
func (t *SSETransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return errors.New("SSE transport already started")
	}
	t.started = true

	h := t.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")

	endpoint := fmt.Sprintf("%s?session=%s", t.messageURL, t.sessionID)
	if err := t.writeEvent("endpoint", endpoint); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = t.Close()
	}()

	return nil
}

// Send writes the message as an SSE event on the stream.
func (t *SSETransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	data, err := message.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.New("SSE transport closed")
	}
	return t.writeEvent("message", string(data))
}

// writeEvent must be called with mu held.
func (t *SSETransport) writeEvent(event, data string) error {
	if _, err := fmt.Fprintf(t.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return errors.Wrap(err, "failed to write event")
	}
	t.flusher.Flush()
	return nil
}

// HandleMessage parses a message received on the POST endpoint and dispatches
// it to the message handler.
func (t *SSETransport) HandleMessage(body []byte) error {
	if len(body) == 0 {
		err := errors.New("empty message")
		t.reportError(err)
		return err
	}

	message, err := transport.ParseJsonRpcMessage(body)
	if err != nil {
		err = errors.Wrap(err, "invalid message")
		t.reportError(err)
		return err
	}

	t.mu.Lock()
	handler := t.messageHandler
	t.mu.Unlock()

	if handler != nil {
		handler(context.Background(), message)
	}
	return nil
}

func (t *SSETransport) reportError(err error) {
	t.mu.Lock()
	handler := t.errorHandler
	t.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

// Close marks the transport closed. It is safe to call multiple times.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	handler := t.closeHandler
	t.mu.Unlock()

	if handler != nil {
		handler()
	}
	return nil
}

// SetCloseHandler implements Transport.SetCloseHandler.
func (t *SSETransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler.
func (t *SSETransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler.
func (t *SSETransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}
