package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zanehq/meta-ads-mcp/internal/mcp"
)

// keepAliveInterval is how often the SSE stream emits a comment to
// keep intermediaries from closing the idle connection.
const keepAliveInterval = 30 * time.Second

// handleSSE serves the server-sent-events transport. The stream opens
// with an endpoint event pointing clients at the POST endpoint, pushes
// the tool catalog when the caller is already authenticated, then
// keeps the connection alive until the client goes away.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, "endpoint", map[string]string{
		"url":       s.baseURL + "/",
		"transport": "http",
		"server":    mcp.ServerName,
		"version":   mcp.ServerVersion,
	})

	if _, err := s.tokens.VerifyAccessToken(bearerToken(r)); err == nil {
		writeEvent(w, "tools", map[string]any{"tools": s.handler.Tools()})
	}
	flusher.Flush()

	s.log.Info("sse stream opened", "remote", r.RemoteAddr)
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.log.Info("sse stream closed", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

// writeEvent emits one named SSE event with a JSON payload.
func writeEvent(w http.ResponseWriter, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}
