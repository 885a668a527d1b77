package sse

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/therealnoof/mcp-server-lab/mcp/transport"
)

// Doer executes HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

const endpointWaitTimeout = 30 * time.Second

// ClientTransport connects to an SSE MCP server: it opens the event stream,
// waits for the endpoint event naming the POST URL, then sends messages there
// while server messages arrive over the stream.
type ClientTransport struct {
	baseURL string
	client  Doer
	headers http.Header

	mu             sync.RWMutex
	postURL        string
	started        bool
	closed         bool
	cancel         context.CancelFunc
	endpointReady  chan struct{}
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
}

// ClientOption configures a ClientTransport.
type ClientOption func(*ClientTransport)

// WithHTTPClient overrides the HTTP client used for the stream and message
// posts.
func WithHTTPClient(client Doer) ClientOption {
	return func(t *ClientTransport) {
		t.client = client
	}
}

// WithHeader adds a header to every request, such as an Authorization token.
func WithHeader(key, value string) ClientOption {
	return func(t *ClientTransport) {
		t.headers.Set(key, value)
	}
}

// NewClientTransport creates a transport connecting to the SSE endpoint at
// baseURL.
func NewClientTransport(baseURL string, opts ...ClientOption) *ClientTransport {
	t := &ClientTransport{
		baseURL:       baseURL,
		client:        http.DefaultClient,
		headers:       make(http.Header),
		endpointReady: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start opens the event stream and blocks until the server announces the
// message endpoint.
func (t *ClientTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("SSE client transport already started")
	}
	t.started = true
	streamCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, t.baseURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create stream request")
	}
	req.Header.Set("Accept", "text/event-stream")
	for key, values := range t.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to connect to SSE endpoint")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return errors.Newf("unexpected status from SSE endpoint: %d", resp.StatusCode)
	}

	go t.readStream(streamCtx, resp.Body)

	select {
	case <-t.endpointReady:
		return nil
	case <-ctx.Done():
		t.Close()
		return errors.WithStack(ctx.Err())
	case <-time.After(endpointWaitTimeout):
		t.Close()
		return errors.New("timed out waiting for endpoint event")
	}
}

func (t *ClientTransport) readStream(ctx context.Context, body io.ReadCloser) {
	defer body.Close()
	defer t.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			t.dispatchEvent(ctx, event, data)
			event, data = "", ""
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if data != "" {
				data += "\n"
			}
			data += strings.TrimPrefix(line, "data: ")
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		t.reportError(errors.Wrap(err, "stream read error"))
	}
}

func (t *ClientTransport) dispatchEvent(ctx context.Context, event, data string) {
	switch event {
	case "endpoint":
		postURL, err := t.resolveEndpoint(data)
		if err != nil {
			t.reportError(err)
			return
		}
		t.mu.Lock()
		alreadySet := t.postURL != ""
		t.postURL = postURL
		t.mu.Unlock()
		if !alreadySet {
			close(t.endpointReady)
		}
		logger.KV(xlog.DEBUG, "endpoint", postURL)

	case "message":
		message, err := transport.ParseJsonRpcMessage([]byte(data))
		if err != nil {
			t.reportError(errors.Wrap(err, "invalid message event"))
			return
		}
		t.mu.RLock()
		handler := t.messageHandler
		t.mu.RUnlock()
		if handler != nil {
			handler(ctx, message)
		}
	}
}

// resolveEndpoint interprets the endpoint event data relative to the stream
// URL, so servers can announce either a path or an absolute URL.
func (t *ClientTransport) resolveEndpoint(data string) (string, error) {
	base, err := url.Parse(t.baseURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid base URL")
	}
	ref, err := url.Parse(data)
	if err != nil {
		return "", errors.Wrap(err, "invalid endpoint event")
	}
	return base.ResolveReference(ref).String(), nil
}

// Send posts the message to the session's message endpoint.
func (t *ClientTransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	t.mu.RLock()
	postURL := t.postURL
	closed := t.closed
	t.mu.RUnlock()

	if closed {
		return errors.New("transport closed")
	}
	if postURL == "" {
		return errors.New("no message endpoint, transport not started")
	}

	data, err := message.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "failed to create message request")
	}
	req.Header.Set("Content-Type", "application/json")
	for key, values := range t.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to post message")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Newf("message endpoint returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close stops the stream reader. Safe to call multiple times.
func (t *ClientTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel := t.cancel
	handler := t.closeHandler
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if handler != nil {
		handler()
	}
	return nil
}

func (t *ClientTransport) reportError(err error) {
	t.mu.RLock()
	handler := t.errorHandler
	t.mu.RUnlock()
	if handler != nil {
		handler(err)
	}
}

// SetCloseHandler implements Transport.SetCloseHandler.
func (t *ClientTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler.
func (t *ClientTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler.
func (t *ClientTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}
