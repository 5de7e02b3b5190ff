// Package transport exposes the MCP protocol handler and the OAuth
// server over HTTP: routing, CORS, bearer authentication, and the
// JSON-RPC wire rules (notifications get 204, protocol errors ride on
// 200, only unparseable bodies get 400).
package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zanehq/meta-ads-mcp/internal/logging"
	"github.com/zanehq/meta-ads-mcp/internal/mcp"
	"github.com/zanehq/meta-ads-mcp/internal/oauth"
	"github.com/zanehq/meta-ads-mcp/internal/token"
)

// maxBodyBytes caps JSON-RPC request bodies.
const maxBodyBytes = 1 << 20

// Server is the HTTP front of the connector.
type Server struct {
	baseURL string
	handler *mcp.Handler
	auth    *oauth.Server
	tokens  *token.Service
	log     logging.Logger
}

// NewServer wires the transport to the protocol handler and the OAuth
// server.
func NewServer(baseURL string, handler *mcp.Handler, auth *oauth.Server, tokens *token.Service, log logging.Logger) *Server {
	return &Server{
		baseURL: strings.TrimRight(baseURL, "/"),
		handler: handler,
		auth:    auth,
		tokens:  tokens,
		log:     log,
	}
}

// Handler returns the fully routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.auth.Routes(mux)
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/mcp.json", s.handleDiscovery)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/sse", s.handleSSE)
	mux.HandleFunc("/.well-known/oauth-protected-resource", s.handleProtectedResource)
	return s.cors(mux)
}

// cors applies permissive CORS to every route and answers preflights.
// Browser-based MCP clients call from arbitrary origins.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPost:
		s.handleRPC(w, r)
	case http.MethodGet:
		s.handleDiscovery(w, r)
	case http.MethodHead:
		w.Header().Set("X-MCP-Version", mcp.ServerVersion)
		w.Header().Set("X-MCP-Transport", "http")
		w.WriteHeader(http.StatusOK)
	default:
		w.Header().Set("Allow", "GET, POST, HEAD, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRPC runs one JSON-RPC message. Bodies that do not parse get
// HTTP 400 with a null id; everything else that reaches dispatch comes
// back on HTTP 200, protocol errors included, because JSON-RPC carries
// its own error channel.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeRPC(w, http.StatusBadRequest, mcp.NewErrorResponse(nil, mcp.CodeParseError, "Parse error"))
		return
	}

	var req mcp.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.log.Warn("unparseable request body", "error", err)
		writeRPC(w, http.StatusBadRequest, mcp.NewErrorResponse(nil, mcp.CodeParseError, "Parse error"))
		return
	}

	if req.Method == "" {
		writeRPC(w, http.StatusOK, mcp.NewErrorResponse(req.ID, mcp.CodeInvalidRequest, "Invalid Request"))
		return
	}

	// Notifications are acknowledged with 204 and never a body. The
	// handler refuses to do protected work for them, so they pass the
	// auth gate without a token.
	if req.IsNotification() {
		s.handler.Handle(r.Context(), "", &req)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	subject := ""
	if !mcp.IsPublicMethod(req.Method) {
		subject, err = s.tokens.VerifyAccessToken(bearerToken(r))
		if err != nil {
			s.unauthorized(w, &req, err)
			return
		}
	}

	resp := s.handler.Handle(r.Context(), subject, &req)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeRPC(w, http.StatusOK, resp)
}

// unauthorized rejects a request with the OAuth challenge header so
// clients can discover where to authenticate.
func (s *Server) unauthorized(w http.ResponseWriter, req *mcp.Request, err error) {
	s.log.Info("unauthorized request", "method", req.Method, "error", err)
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(
		`Bearer realm=%q, authorization_uri=%q, token_uri=%q`,
		s.baseURL, s.baseURL+"/oauth/authorize", s.baseURL+"/oauth/token"))
	writeRPC(w, http.StatusUnauthorized,
		mcp.NewErrorResponse(req.ID, mcp.CodeInvalidRequest, "Authentication required"))
}

// handleDiscovery describes the server for clients probing before the
// MCP handshake.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	tools := s.handler.Tools()
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":             mcp.ServerName,
		"version":          mcp.ServerVersion,
		"protocol_version": mcp.DefaultProtocolVersion,
		"transport":        []string{"http", "sse"},
		"endpoints": map[string]string{
			"mcp":    s.baseURL + "/",
			"sse":    s.baseURL + "/sse",
			"health": s.baseURL + "/health",
		},
		"authentication": map[string]string{
			"type":              "oauth2",
			"authorization_url": s.baseURL + "/oauth/authorize",
			"token_url":         s.baseURL + "/oauth/token",
			"registration_url":  s.baseURL + "/oauth/register",
			"metadata_url":      s.baseURL + "/.well-known/oauth-authorization-server",
		},
		"tools": names,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": mcp.ServerName,
	})
}

// handleProtectedResource answers resource probes with the challenge
// pointing at the authorization server.
func (s *Server) handleProtectedResource(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(
		`Bearer realm=%q, authorization_uri=%q, token_uri=%q`,
		s.baseURL, s.baseURL+"/oauth/authorize", s.baseURL+"/oauth/token"))
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "unauthorized",
		"error_description": "authenticate via the OAuth endpoints",
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeRPC(w http.ResponseWriter, status int, resp *mcp.Response) {
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
