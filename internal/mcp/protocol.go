// Package mcp implements the Model Context Protocol server side: JSON-RPC
// 2.0 message types, method dispatch, the tool catalog, and tool execution
// against the Meta Ads gateway.
package mcp

import (
	"encoding/json"
	"fmt"
)

// Protocol constants.
const (
	// JSONRPCVersion is the JSON-RPC version used by MCP.
	JSONRPCVersion = "2.0"

	// DefaultProtocolVersion is offered when the client does not state one.
	DefaultProtocolVersion = "2024-11-05"

	// ServerName and ServerVersion identify this server to clients.
	ServerName    = "Zane - Meta Ads Connector"
	ServerVersion = "1.0.0"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is an MCP JSON-RPC 2.0 request or notification.
//
// The ID is kept raw so that any valid id round-trips unchanged and so
// an absent id (notification) is distinguishable from id 0 or id null.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the message carries no id and
// therefore must not receive a response body.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is an MCP JSON-RPC 2.0 response. Exactly one of Result and
// Error is set. A nil ID marshals as null, which is the required id
// for parse-error responses.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewResponse builds a success response echoing the request id.
func NewResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

// NewErrorResponse builds an error response echoing the request id.
func NewErrorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}

// ToolDescriptor describes one tool for client discovery.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ContentBlock is one entry of an MCP tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is MCP's canonical wrapping of tool output: a single text
// block holding JSON-encoded data. Tool-level failures are reported the
// same way so the calling LLM can read and relay them.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
}

// TextResult encodes v as indented JSON inside a single text block.
func TextResult(v any) (*ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return &ToolResult{Content: []ContentBlock{{Type: "text", Text: string(data)}}}, nil
}

// InitializeResult is the response to the initialize method.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Capabilities advertises what this server supports. Tools only.
type Capabilities struct {
	Tools struct{} `json:"tools"`
}

// ServerInfo identifies the server implementation.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ListToolsResult is the response to tools/list.
type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}
