package sse_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealnoof/mcp-server-lab/mcp"
	"github.com/therealnoof/mcp-server-lab/mcp/transport"
	"github.com/therealnoof/mcp-server-lab/mcp/transport/sse"
	"github.com/therealnoof/mcp-server-lab/soctools"
)

// plainRecorder hides the Flusher httptest.ResponseRecorder implements.
type plainRecorder struct {
	header http.Header
}

func (r *plainRecorder) Header() http.Header         { return r.header }
func (r *plainRecorder) Write(b []byte) (int, error) { return len(b), nil }
func (r *plainRecorder) WriteHeader(int)             {}

func TestNewSSETransport(t *testing.T) {
	w := httptest.NewRecorder()
	tr, err := sse.NewSSETransport("/messages", w)
	require.NoError(t, err)
	assert.Len(t, tr.SessionID(), 36)

	_, err = sse.NewSSETransport("/messages", &plainRecorder{header: http.Header{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "streaming not supported")
}

func TestSSETransport_Start(t *testing.T) {
	w := httptest.NewRecorder()
	tr, err := sse.NewSSETransport("/messages", w)
	require.NoError(t, err)

	require.NoError(t, tr.Start(context.Background()))

	headers := w.Header()
	assert.Equal(t, "text/event-stream", headers.Get("Content-Type"))
	assert.Equal(t, "no-cache", headers.Get("Cache-Control"))
	assert.Equal(t, "keep-alive", headers.Get("Connection"))
	assert.Equal(t, "*", headers.Get("Access-Control-Allow-Origin"))

	body := w.Body.String()
	assert.Contains(t, body, "event: endpoint")
	assert.Contains(t, body, "/messages?session="+tr.SessionID())

	err = tr.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestSSETransport_Send(t *testing.T) {
	w := httptest.NewRecorder()
	tr, err := sse.NewSSETransport("/messages", w)
	require.NoError(t, err)
	require.NoError(t, tr.Start(context.Background()))

	msg := transport.NewBaseMessageNotification(&transport.BaseJSONRPCNotification{
		Jsonrpc: "2.0",
		Method:  "notifications/tools/list_changed",
	})
	require.NoError(t, tr.Send(context.Background(), msg))

	body := w.Body.String()
	assert.Contains(t, body, "event: message")
	assert.Contains(t, body, `"method":"notifications/tools/list_changed"`)

	require.NoError(t, tr.Close())
	err = tr.Send(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestSSETransport_HandleMessage(t *testing.T) {
	w := httptest.NewRecorder()
	tr, err := sse.NewSSETransport("/messages", w)
	require.NoError(t, err)

	var received *transport.BaseJsonRpcMessage
	tr.SetMessageHandler(func(_ context.Context, msg *transport.BaseJsonRpcMessage) {
		received = msg
	})

	request := transport.BaseJSONRPCRequest{
		Jsonrpc: "2.0",
		Method:  "tools/list",
		Id:      transport.RequestId(7),
	}
	raw, err := json.Marshal(request)
	require.NoError(t, err)

	require.NoError(t, tr.HandleMessage(raw))
	require.NotNil(t, received)
	assert.Equal(t, transport.BaseMessageTypeJSONRPCRequestType, received.Type)
	assert.Equal(t, "tools/list", received.JsonRpcRequest.Method)
	assert.Equal(t, transport.RequestId(7), received.JsonRpcRequest.Id)

	require.Error(t, tr.HandleMessage(nil))
	require.Error(t, tr.HandleMessage([]byte("not json")))
}

// Full round trip over HTTP: tool server behind the SSE handler, MCP client
// on the SSE client transport.
func TestSSE_EndToEnd(t *testing.T) {
	handler := sse.NewHandler("/messages", func(tr *sse.SSETransport) error {
		srv := mcp.NewServer(tr, mcp.WithName("soc-tools"))
		if err := soctools.RegisterAll(srv); err != nil {
			return err
		}
		return srv.Serve()
	})

	mux := http.NewServeMux()
	mux.Handle("/sse", http.HandlerFunc(handler.ServeSSE))
	mux.Handle("/messages", http.HandlerFunc(handler.ServeMessage))

	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := mcp.NewClient(sse.NewClientTransport(httpServer.URL + "/sse"))
	defer client.Close()

	resp, err := client.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "soc-tools", resp.ServerInfo.Name)

	tools, err := client.ListAllTools(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "get_recent_alerts")
	assert.Contains(t, names, "check_ip_reputation")
	assert.Contains(t, names, "lookup_ip_geolocation")

	result, err := client.CallTool(ctx, "check_ip_reputation", map[string]any{
		"ip_address": "45.33.32.156",
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, result.TextContent(), "Known C2 Server")

	result, err = client.CallTool(ctx, "get_recent_alerts", map[string]any{"limit": 2})
	require.NoError(t, err)
	assert.Contains(t, result.TextContent(), "ALT-001")
	assert.Contains(t, result.TextContent(), "ALT-002")
}

func TestHandler_ServeMessageValidation(t *testing.T) {
	handler := sse.NewHandler("/messages", func(tr *sse.SSETransport) error {
		return nil
	})

	// Missing session parameter
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/messages", nil)
	handler.ServeMessage(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown session
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/messages?session=nope", nil)
	handler.ServeMessage(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
