// Package transport defines the JSON-RPC message framing and the Transport
// interface MCP clients and servers communicate over.
package transport

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// RequestId is a JSON-RPC request identifier.
type RequestId int64

// JsonRpcBody is the payload of a JSON-RPC result.
type JsonRpcBody any

// BaseJSONRPCRequest is a JSON-RPC request with an Id.
type BaseJSONRPCRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	// Params is kept raw so each handler can decode its own shape.
	Params json.RawMessage `json:"params"`
	Id     RequestId       `json:"id"`
}

type baseJSONRPCRequestAlias struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  *string         `json:"method"`
	Params  json.RawMessage `json:"params"`
	Id      *RequestId      `json:"id"`
}

// UnmarshalJSON fails unless both method and id are present, so callers can
// probe a raw message for its type.
func (m *BaseJSONRPCRequest) UnmarshalJSON(data []byte) error {
	var aux baseJSONRPCRequestAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.WithStack(err)
	}
	if aux.Method == nil || aux.Id == nil {
		return errors.New("missing required fields: method and id")
	}
	m.Jsonrpc = aux.Jsonrpc
	m.Method = *aux.Method
	m.Params = aux.Params
	m.Id = *aux.Id
	return nil
}

// BaseJSONRPCNotification is a JSON-RPC notification, a request without an Id.
type BaseJSONRPCNotification struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type baseJSONRPCNotificationAlias struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  *string         `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	Id      *RequestId      `json:"id"`
}

// UnmarshalJSON fails when an id is present, distinguishing notifications
// from requests.
func (m *BaseJSONRPCNotification) UnmarshalJSON(data []byte) error {
	var aux baseJSONRPCNotificationAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.WithStack(err)
	}
	if aux.Method == nil || aux.Id != nil {
		return errors.New("not a notification")
	}
	m.Jsonrpc = aux.Jsonrpc
	m.Method = *aux.Method
	m.Params = aux.Params
	return nil
}

// BaseJSONRPCResponse is a successful JSON-RPC response.
type BaseJSONRPCResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Id      RequestId       `json:"id"`
}

type baseJSONRPCResponseAlias struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Id      *RequestId      `json:"id"`
}

func (m *BaseJSONRPCResponse) UnmarshalJSON(data []byte) error {
	var aux baseJSONRPCResponseAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.WithStack(err)
	}
	if aux.Result == nil || aux.Id == nil {
		return errors.New("missing required fields: result and id")
	}
	m.Jsonrpc = aux.Jsonrpc
	m.Result = aux.Result
	m.Id = *aux.Id
	return nil
}

// BaseJSONRPCErrorInner is the error member of a JSON-RPC error response.
type BaseJSONRPCErrorInner struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BaseJSONRPCError is a JSON-RPC error response.
type BaseJSONRPCError struct {
	Jsonrpc string                `json:"jsonrpc"`
	Id      RequestId             `json:"id"`
	Error   BaseJSONRPCErrorInner `json:"error"`
}

type baseJSONRPCErrorAlias struct {
	Jsonrpc string                 `json:"jsonrpc"`
	Id      *RequestId             `json:"id"`
	Error   *BaseJSONRPCErrorInner `json:"error"`
}

func (m *BaseJSONRPCError) UnmarshalJSON(data []byte) error {
	var aux baseJSONRPCErrorAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.WithStack(err)
	}
	if aux.Error == nil || aux.Id == nil {
		return errors.New("missing required fields: error and id")
	}
	m.Jsonrpc = aux.Jsonrpc
	m.Id = *aux.Id
	m.Error = *aux.Error
	return nil
}

// BaseMessageType identifies which member of BaseJsonRpcMessage is set.
type BaseMessageType string

const (
	BaseMessageTypeJSONRPCRequestType      BaseMessageType = "request"
	BaseMessageTypeJSONRPCNotificationType BaseMessageType = "notification"
	BaseMessageTypeJSONRPCResponseType     BaseMessageType = "response"
	BaseMessageTypeJSONRPCErrorType        BaseMessageType = "error"
)

// BaseJsonRpcMessage is a tagged union over the four JSON-RPC message kinds.
type BaseJsonRpcMessage struct {
	Type                BaseMessageType
	JsonRpcRequest      *BaseJSONRPCRequest
	JsonRpcNotification *BaseJSONRPCNotification
	JsonRpcResponse     *BaseJSONRPCResponse
	JsonRpcError        *BaseJSONRPCError
}

func NewBaseMessageRequest(request *BaseJSONRPCRequest) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:           BaseMessageTypeJSONRPCRequestType,
		JsonRpcRequest: request,
	}
}

func NewBaseMessageNotification(notification *BaseJSONRPCNotification) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:                BaseMessageTypeJSONRPCNotificationType,
		JsonRpcNotification: notification,
	}
}

func NewBaseMessageResponse(response *BaseJSONRPCResponse) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:            BaseMessageTypeJSONRPCResponseType,
		JsonRpcResponse: response,
	}
}

func NewBaseMessageError(err *BaseJSONRPCError) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:         BaseMessageTypeJSONRPCErrorType,
		JsonRpcError: err,
	}
}

// MarshalJSON delegates to whichever member is set.
func (m *BaseJsonRpcMessage) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		return json.Marshal(m.JsonRpcRequest)
	case BaseMessageTypeJSONRPCNotificationType:
		return json.Marshal(m.JsonRpcNotification)
	case BaseMessageTypeJSONRPCResponseType:
		return json.Marshal(m.JsonRpcResponse)
	case BaseMessageTypeJSONRPCErrorType:
		return json.Marshal(m.JsonRpcError)
	}
	return nil, errors.Newf("unknown message type: %s", m.Type)
}

// MessageID returns the request id of the message, or 0 for notifications.
func (m *BaseJsonRpcMessage) MessageID() RequestId {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		return m.JsonRpcRequest.Id
	case BaseMessageTypeJSONRPCResponseType:
		return m.JsonRpcResponse.Id
	case BaseMessageTypeJSONRPCErrorType:
		return m.JsonRpcError.Id
	}
	return 0
}

// ParseJsonRpcMessage probes a raw payload for its message kind.
func ParseJsonRpcMessage(data []byte) (*BaseJsonRpcMessage, error) {
	var request BaseJSONRPCRequest
	if err := json.Unmarshal(data, &request); err == nil {
		return NewBaseMessageRequest(&request), nil
	}
	var notification BaseJSONRPCNotification
	if err := json.Unmarshal(data, &notification); err == nil {
		return NewBaseMessageNotification(&notification), nil
	}
	var response BaseJSONRPCResponse
	if err := json.Unmarshal(data, &response); err == nil {
		return NewBaseMessageResponse(&response), nil
	}
	var errorResponse BaseJSONRPCError
	if err := json.Unmarshal(data, &errorResponse); err == nil {
		return NewBaseMessageError(&errorResponse), nil
	}
	return nil, errors.New("failed to parse JSON-RPC message")
}

// Transport is the interface for sending and receiving JSON-RPC messages.
type Transport interface {
	// Start begins processing messages on the transport, including any
	// connection steps that might need to be taken.
	Start(ctx context.Context) error

	// Send sends a JSON-RPC message (request, notification or response).
	Send(ctx context.Context, message *BaseJsonRpcMessage) error

	// Close closes the connection.
	Close() error

	// SetCloseHandler sets the callback for when the connection is closed for
	// any reason. This should be invoked when Close() is called as well.
	SetCloseHandler(handler func())

	// SetErrorHandler sets the callback for when an error occurs.
	// Note that errors are not necessarily fatal; they are used for reporting
	// any kind of exceptional condition out of band.
	SetErrorHandler(handler func(err error))

	// SetMessageHandler sets the callback for when a message (request,
	// notification or response) is received over the connection.
	SetMessageHandler(handler func(ctx context.Context, message *BaseJsonRpcMessage))
}
