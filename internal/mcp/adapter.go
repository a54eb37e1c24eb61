// ABOUTME: JSON-RPC 2.0 protocol adapter for MCP-style tool calling.
// ABOUTME: Classifies requests vs notifications and routes methods to dispatch.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/fieldbus/cnc-gateway/internal/tools"
)

// ProtocolVersion is the MCP protocol version advertised to clients.
// Wire-format constant; existing callers pin on it.
const ProtocolVersion = "2024-11-05"

// JSONRPCInternalError is the JSON-RPC internal error code. All adapter
// errors are reported under this code for compatibility with existing
// callers.
const JSONRPCInternalError = -32603

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// IsNotification reports whether the message carries no id and therefore
// must never produce a reply.
func (r JSONRPCRequest) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// ToolInfo is a tool descriptor as listed over the protocol.
type ToolInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams are the params for tools/call. Arguments is left untyped
// so the dispatch layer can normalize string and object forms.
type CallToolParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments,omitempty"`
}

// Adapter interprets protocol messages independently of transport. Both
// the SSE and the direct HTTP transport hand messages to the same adapter.
type Adapter struct {
	registry      *tools.Registry
	dispatcher    *tools.Dispatcher
	serverName    string
	serverVersion string
	logger        *slog.Logger
}

// NewAdapter creates a protocol adapter over the given registry and
// dispatcher.
func NewAdapter(registry *tools.Registry, dispatcher *tools.Dispatcher, serverName, serverVersion string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		registry:      registry,
		dispatcher:    dispatcher,
		serverName:    serverName,
		serverVersion: serverVersion,
		logger:        logger.With("component", "mcp"),
	}
}

// Handle processes one protocol message and returns the reply envelope, or
// nil when the message must not produce a reply (notifications). Errors
// during notification handling are logged and absorbed; a malformed ping
// must never generate spurious output.
func (a *Adapter) Handle(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	noReply := req.IsNotification() || strings.HasPrefix(req.Method, "notifications/")

	a.logger.Debug("protocol message",
		"method", req.Method,
		"is_notification", noReply,
	)

	result, err := a.route(ctx, req)

	if noReply {
		if err != nil {
			a.logger.Warn("notification error absorbed", "method", req.Method, "error", err)
		}
		return nil
	}

	if err != nil {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &JSONRPCError{Code: JSONRPCInternalError, Message: err.Error()},
		}
	}
	return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

// route maps a method name to its action.
func (a *Adapter) route(ctx context.Context, req JSONRPCRequest) (any, error) {
	switch req.Method {
	case "initialize":
		return a.CapabilityDescriptor(), nil
	case "notifications/initialized":
		a.logger.Info("client initialized")
		return nil, nil
	case "notifications/ping":
		a.logger.Debug("ping received")
		return nil, nil
	case "tools/list":
		return a.ListTools(), nil
	case "tools/call":
		return a.callTool(ctx, req.Params)
	default:
		if strings.HasPrefix(req.Method, "notifications/") {
			a.logger.Debug("notification received", "method", req.Method)
			return nil, nil
		}
		// Wire-format constant error text
		return nil, fmt.Errorf("Unknown method: %s", req.Method)
	}
}

// CapabilityDescriptor is the static initialize result.
func (a *Adapter) CapabilityDescriptor() map[string]any {
	return map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{
				"listChanged": true,
			},
		},
		"serverInfo": map[string]any{
			"name":    a.serverName,
			"version": a.serverVersion,
		},
	}
}

// ListTools shapes the registry contents for the protocol.
func (a *Adapter) ListTools() ListToolsResult {
	registered := a.registry.List()
	result := ListToolsResult{Tools: make([]ToolInfo, len(registered))}
	for i, t := range registered {
		result.Tools[i] = ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}
	}
	return result
}

func (a *Adapter) callTool(ctx context.Context, rawParams json.RawMessage) (any, error) {
	var params CallToolParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}

	result, err := a.dispatcher.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, err
	}
	return result, nil
}
