// Package protocol implements JSON-RPC request/response correlation on top of
// a pluggable transport: request ID generation, per-request timeouts,
// cancellation notifications, and handler registration.
package protocol

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/therealnoof/mcp-server-lab/mcp/transport"
)

var logger = xlog.NewPackageLogger("github.com/therealnoof/mcp-server-lab/mcp", "protocol")

// DefaultRequestTimeout bounds a single request when the caller does not
// provide its own.
const DefaultRequestTimeout = 60 * time.Second

// RequestOptions contains options that can be given per request.
type RequestOptions struct {
	// Context can be used to cancel an in-flight request.
	Context context.Context
	// Timeout specifies a timeout for this request; DefaultRequestTimeout is
	// used when zero.
	Timeout time.Duration
}

// RequestHandlerExtra contains extra data given to request handlers.
type RequestHandlerExtra struct {
	// Context used to communicate if the request was cancelled from the
	// sender's side.
	Context context.Context
}

// RequestHandler handles an incoming request and returns the result body.
type RequestHandler func(ctx context.Context, request *transport.BaseJSONRPCRequest, extra RequestHandlerExtra) (transport.JsonRpcBody, error)

// NotificationHandler handles an incoming notification.
type NotificationHandler func(notification *transport.BaseJSONRPCNotification) error

// Protocol implements MCP protocol framing on top of a pluggable transport,
// linking requests to responses and dispatching incoming requests to
// registered handlers.
type Protocol struct {
	transport transport.Transport

	requestMessageID transport.RequestId
	mu               sync.RWMutex

	requestHandlers      map[string]RequestHandler
	requestCancellers    map[transport.RequestId]context.CancelFunc
	notificationHandlers map[string]NotificationHandler
	responseHandlers     map[transport.RequestId]chan *responseEnvelope

	// OnClose is called when the connection is closed for any reason.
	OnClose func()
	// OnError is called when an out-of-band error occurs.
	OnError func(error)
}

type responseEnvelope struct {
	response json.RawMessage
	err      error
}

// NewProtocol creates a new Protocol instance.
func NewProtocol() *Protocol {
	p := &Protocol{
		requestHandlers:      make(map[string]RequestHandler),
		requestCancellers:    make(map[transport.RequestId]context.CancelFunc),
		notificationHandlers: make(map[string]NotificationHandler),
		responseHandlers:     make(map[transport.RequestId]chan *responseEnvelope),
	}

	p.SetNotificationHandler("notifications/cancelled", p.handleCancelledNotification)
	p.SetNotificationHandler("notifications/initialized", p.handleInitializedNotification)

	return p
}

// Connect attaches to the given transport, starts it, and starts listening
// for messages.
func (p *Protocol) Connect(tr transport.Transport) error {
	p.transport = tr

	tr.SetCloseHandler(func() {
		p.handleClose()
	})

	tr.SetErrorHandler(func(err error) {
		p.handleError(err)
	})

	tr.SetMessageHandler(func(ctx context.Context, message *transport.BaseJsonRpcMessage) {
		switch message.Type {
		case transport.BaseMessageTypeJSONRPCRequestType:
			p.handleRequest(ctx, message.JsonRpcRequest)
		case transport.BaseMessageTypeJSONRPCNotificationType:
			p.handleNotification(message.JsonRpcNotification)
		case transport.BaseMessageTypeJSONRPCResponseType:
			p.handleResponse(message.JsonRpcResponse, nil)
		case transport.BaseMessageTypeJSONRPCErrorType:
			p.handleResponse(nil, message.JsonRpcError)
		}
	})

	return tr.Start(context.Background())
}

func (p *Protocol) handleClose() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, cancel := range p.requestCancellers {
		cancel()
	}

	for id, ch := range p.responseHandlers {
		// Do not block with the lock held: the waiter may have timed out
		// already with its response still in the buffer.
		select {
		case ch <- &responseEnvelope{err: errors.New("connection closed")}:
		default:
		}
		close(ch)
		delete(p.responseHandlers, id)
	}

	if p.OnClose != nil {
		p.OnClose()
	}
	p.requestHandlers = make(map[string]RequestHandler)
	p.notificationHandlers = make(map[string]NotificationHandler)
	p.responseHandlers = make(map[transport.RequestId]chan *responseEnvelope)
}

func (p *Protocol) handleError(err error) {
	if p.OnError != nil {
		p.OnError(err)
	}
}

func (p *Protocol) handleNotification(notification *transport.BaseJSONRPCNotification) {
	logger.KV(xlog.DEBUG, "method", notification.Method)

	p.mu.RLock()
	handler := p.notificationHandlers[notification.Method]
	p.mu.RUnlock()

	if handler == nil {
		return
	}

	go func() {
		if err := handler(notification); err != nil {
			p.handleError(errors.Wrap(err, "notification handler error"))
		}
	}()
}

func (p *Protocol) handleRequest(ctx context.Context, request *transport.BaseJSONRPCRequest) {
	logger.KV(xlog.DEBUG,
		"method", request.Method,
		"id", request.Id,
	)

	p.mu.RLock()
	handler := p.requestHandlers[request.Method]
	p.mu.RUnlock()

	if handler == nil {
		handler = func(ctx context.Context, req *transport.BaseJSONRPCRequest, extra RequestHandlerExtra) (transport.JsonRpcBody, error) {
			return nil, errors.Newf("method not found: %s", req.Method)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.requestCancellers[request.Id] = cancel
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.requestCancellers, request.Id)
			p.mu.Unlock()
			cancel()
		}()

		result, err := handler(ctx, request, RequestHandlerExtra{Context: ctx})
		if err != nil {
			logger.KV(xlog.DEBUG, "method", request.Method, "id", request.Id, "err", err.Error())
			p.sendErrorResponse(request.Id, err)
			return
		}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			p.sendErrorResponse(request.Id, errors.Wrap(err, "failed to marshal result"))
			return
		}
		response := &transport.BaseJSONRPCResponse{
			Jsonrpc: "2.0",
			Id:      request.Id,
			Result:  jsonResult,
		}

		if err := p.transport.Send(ctx, transport.NewBaseMessageResponse(response)); err != nil {
			p.handleError(errors.Wrap(err, "failed to send response"))
		}
	}()
}

func (p *Protocol) handleInitializedNotification(notification *transport.BaseJSONRPCNotification) error {
	logger.KV(xlog.DEBUG, "method", notification.Method)
	return nil
}

func (p *Protocol) handleCancelledNotification(notification *transport.BaseJSONRPCNotification) error {
	var params struct {
		RequestId transport.RequestId `json:"requestId"`
		Reason    string              `json:"reason"`
	}

	if err := json.Unmarshal(notification.Params, &params); err != nil {
		return errors.Wrap(err, "failed to unmarshal cancelled params")
	}

	p.mu.RLock()
	cancel := p.requestCancellers[params.RequestId]
	p.mu.RUnlock()

	if cancel != nil {
		cancel()
	}

	return nil
}

func (p *Protocol) handleResponse(response *transport.BaseJSONRPCResponse, errResp *transport.BaseJSONRPCError) {
	var id transport.RequestId
	var result json.RawMessage
	var err error

	if errResp != nil {
		id = errResp.Id
		err = errors.Newf("RPC error %d: %s", errResp.Error.Code, errResp.Error.Message)
	} else {
		result = response.Result
		id = response.Id
	}

	p.mu.RLock()
	ch := p.responseHandlers[id]
	p.mu.RUnlock()

	if ch != nil {
		// The waiter may be gone after a timeout; never block the transport
		// handler on a stale channel.
		select {
		case ch <- &responseEnvelope{response: result, err: err}:
		default:
		}
	}
}

// Close closes the connection.
func (p *Protocol) Close() error {
	if p.transport != nil {
		return p.transport.Close()
	}
	return nil
}

// Request sends a request and waits for the correlated response. The raw
// result body is returned for the caller to decode.
func (p *Protocol) Request(ctx context.Context, method string, params any, opts *RequestOptions) (json.RawMessage, error) {
	if p.transport == nil {
		return nil, errors.New("not connected")
	}

	if opts == nil {
		opts = &RequestOptions{}
	}
	if opts.Context == nil {
		opts.Context = ctx
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultRequestTimeout
	}

	p.mu.Lock()
	id := p.requestMessageID
	p.requestMessageID++
	ch := make(chan *responseEnvelope, 1)
	p.responseHandlers[id] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.responseHandlers, id)
		p.mu.Unlock()
	}()

	marshalledParams, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal params")
	}

	request := &transport.BaseJSONRPCRequest{
		Jsonrpc: "2.0",
		Method:  method,
		Params:  marshalledParams,
		Id:      id,
	}

	if err := p.transport.Send(ctx, transport.NewBaseMessageRequest(request)); err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}

	select {
	case envelope := <-ch:
		if envelope.err != nil {
			return nil, envelope.err
		}
		return envelope.response, nil
	case <-opts.Context.Done():
		p.sendCancelNotification(id, opts.Context.Err().Error())
		return nil, errors.WithStack(opts.Context.Err())
	case <-time.After(opts.Timeout):
		p.sendCancelNotification(id, "request timeout")
		return nil, errors.Newf("request timeout after %v", opts.Timeout)
	}
}

func (p *Protocol) sendCancelNotification(requestID transport.RequestId, reason string) {
	params := map[string]any{
		"requestId": requestID,
		"reason":    reason,
	}
	marshalled, err := json.Marshal(params)
	if err != nil {
		p.handleError(errors.Wrap(err, "failed to marshal cancel params"))
		return
	}
	notification := &transport.BaseJSONRPCNotification{
		Jsonrpc: "2.0",
		Method:  "notifications/cancelled",
		Params:  marshalled,
	}

	if err := p.transport.Send(context.Background(), transport.NewBaseMessageNotification(notification)); err != nil {
		p.handleError(errors.Wrap(err, "failed to send cancel notification"))
	}
}

func (p *Protocol) sendErrorResponse(requestID transport.RequestId, err error) {
	response := &transport.BaseJSONRPCError{
		Jsonrpc: "2.0",
		Id:      requestID,
		Error: transport.BaseJSONRPCErrorInner{
			Code:    -32000, // Internal error
			Message: err.Error(),
		},
	}

	if sendErr := p.transport.Send(context.Background(), transport.NewBaseMessageError(response)); sendErr != nil {
		p.handleError(errors.Wrap(sendErr, "failed to send error response"))
	}
}

// Notification emits a notification, which is a one-way message that does not
// expect a response.
func (p *Protocol) Notification(method string, params any) error {
	if p.transport == nil {
		return errors.New("not connected")
	}

	marshalled, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification params")
	}

	notification := &transport.BaseJSONRPCNotification{
		Jsonrpc: "2.0",
		Method:  method,
		Params:  marshalled,
	}

	return p.transport.Send(context.Background(), transport.NewBaseMessageNotification(notification))
}

// SetRequestHandler registers a handler to invoke when this protocol object
// receives a request with the given method.
func (p *Protocol) SetRequestHandler(method string, handler RequestHandler) {
	p.mu.Lock()
	p.requestHandlers[method] = handler
	p.mu.Unlock()
}

// SetNotificationHandler registers a handler to invoke when this protocol
// object receives a notification with the given method.
func (p *Protocol) SetNotificationHandler(method string, handler NotificationHandler) {
	p.mu.Lock()
	p.notificationHandlers[method] = handler
	p.mu.Unlock()
}
