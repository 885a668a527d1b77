package sse

import (
	"io"
	"net/http"
	"sync"

	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/therealnoof/mcp-server-lab/mcp", "sse")

// SessionHandler is called once per SSE connection with the session's
// transport, before the endpoint event is written. It typically constructs an
// MCP server on the transport and starts serving.
type SessionHandler func(t *SSETransport) error

// Handler serves the SSE endpoint and the companion message endpoint,
// tracking live sessions by ID.
type Handler struct {
	messagePath string
	onSession   SessionHandler

	mu       sync.RWMutex
	sessions map[string]*SSETransport
}

// NewHandler creates a handler. messagePath is the URL path clients POST
// messages to; onSession is invoked for each new stream.
func NewHandler(messagePath string, onSession SessionHandler) *Handler {
	return &Handler{
		messagePath: messagePath,
		onSession:   onSession,
		sessions:    make(map[string]*SSETransport),
	}
}

// ServeSSE handles a GET request by opening an event stream and blocking
// until the client disconnects.
func (h *Handler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	t, err := NewSSETransport(h.messagePath, w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	h.sessions[t.SessionID()] = t
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.sessions, t.SessionID())
		h.mu.Unlock()
	}()

	logger.KV(xlog.DEBUG, "session", t.SessionID(), "remote", r.RemoteAddr)

	if err := h.onSession(t); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// onSession serves the transport; Start was called by the protocol layer
	// and wrote the endpoint event. Hold the stream open until the client
	// goes away.
	<-r.Context().Done()
	_ = t.Close()
}

// ServeMessage handles a POST request carrying one JSON-RPC message for an
// open session.
func (h *Handler) ServeMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return
	}

	h.mu.RLock()
	t := h.sessions[sessionID]
	h.mu.RUnlock()

	if t == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := t.HandleMessage(body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ServeHTTP routes GET requests to the event stream and POST requests to the
// message endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ServeSSE(w, r)
	case http.MethodPost:
		h.ServeMessage(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
