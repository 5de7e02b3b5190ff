package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zanehq/meta-ads-mcp/internal/accounts"
	"github.com/zanehq/meta-ads-mcp/internal/ads"
	"github.com/zanehq/meta-ads-mcp/internal/logging"
)

// Methods that may be called without a bearer token. Everything else
// requires authentication, enforced by the transport layer.
var publicMethods = map[string]struct{}{
	"initialize":                {},
	"initialized":               {},
	"notifications/initialized": {},
	"ping":                      {},
}

// IsPublicMethod reports whether the method is callable pre-auth.
func IsPublicMethod(method string) bool {
	_, ok := publicMethods[method]
	return ok
}

// Handler dispatches MCP JSON-RPC requests to method implementations.
type Handler struct {
	store   accounts.Store
	gateway ads.Gateway
	log     logging.Logger

	catalog   []ToolDescriptor
	executors map[string]toolFunc
}

// NewHandler wires the protocol handler to its account store and data
// gateway.
func NewHandler(store accounts.Store, gateway ads.Gateway, log logging.Logger) *Handler {
	h := &Handler{
		store:   store,
		gateway: gateway,
		log:     log,
	}
	h.registerTools()
	return h
}

// Handle executes one JSON-RPC message for the given subject and
// returns the response, or nil when the message is a notification.
// Panics in method implementations surface as internal errors rather
// than taking the server down.
func (h *Handler) Handle(ctx context.Context, subject string, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("panic in method handler", "method", req.Method, "panic", r)
			resp = NewErrorResponse(req.ID, CodeInternalError, fmt.Sprintf("Internal error: %v", r))
		}
	}()

	// No message without an id may ever get a response, whatever the
	// method. Notifications are acknowledged by transport status alone.
	if req.IsNotification() {
		h.log.Debug("notification received", "method", req.Method)
		return nil
	}

	switch req.Method {
	case "initialized", "notifications/initialized":
		// Lifecycle methods sent (unusually) with an id still get
		// their one response.
		return NewResponse(req.ID, struct{}{})
	case "initialize":
		return NewResponse(req.ID, h.initialize(req.Params))
	case "ping":
		return NewResponse(req.ID, struct{}{})
	case "tools/list":
		return NewResponse(req.ID, ListToolsResult{Tools: h.catalog})
	case "tools/call":
		result, err := h.callTool(ctx, subject, req.Params)
		if err != nil {
			return NewErrorResponse(req.ID, CodeInternalError, err.Error())
		}
		return NewResponse(req.ID, result)
	default:
		return NewErrorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// Tools returns the tool catalog, for surfaces outside the JSON-RPC
// dispatch (discovery documents, SSE bootstrap).
func (h *Handler) Tools() []ToolDescriptor {
	return h.catalog
}

func (h *Handler) initialize(params json.RawMessage) InitializeResult {
	var p struct {
		ProtocolVersion string `json:"protocolVersion"`
		ClientInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
	}
	// Malformed params are tolerated; the defaults apply.
	_ = json.Unmarshal(params, &p)

	version := p.ProtocolVersion
	if version == "" {
		version = DefaultProtocolVersion
	}
	if p.ClientInfo.Name != "" {
		h.log.Info("client initialized", "client", p.ClientInfo.Name, "version", p.ClientInfo.Version)
	}
	return InitializeResult{
		ProtocolVersion: version,
		ServerInfo:      ServerInfo{Name: ServerName, Version: ServerVersion},
	}
}
