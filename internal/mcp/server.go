// ABOUTME: HTTP transport for the protocol adapter: Streamable HTTP endpoint,
// ABOUTME: compatibility routes, direct tool execution, and health.

package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fieldbus/cnc-gateway/internal/tools"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// Config holds configuration for the MCP transport server.
type Config struct {
	Adapter           *Adapter
	Registry          *tools.Registry
	Dispatcher        *tools.Dispatcher
	Logger            *slog.Logger
	HeartbeatInterval time.Duration
	CORSOrigins       []string
}

// Server exposes the protocol adapter over HTTP. It serves the Streamable
// HTTP transport on /mcp, the SSE transport on /sse, compatibility routes
// for initialize and tool listing/calling, and a direct tool-execution
// surface that bypasses envelope framing.
type Server struct {
	adapter    *Adapter
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	logger     *slog.Logger
	heartbeat  time.Duration
	corsOrigin string
}

// NewServer creates a transport server from the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Adapter == nil {
		return nil, errors.New("adapter is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}

	corsOrigin := "*"
	if len(cfg.CORSOrigins) == 1 {
		corsOrigin = cfg.CORSOrigins[0]
	}

	return &Server{
		adapter:    cfg.Adapter,
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		logger:     logger.With("component", "transport"),
		heartbeat:  heartbeat,
		corsOrigin: corsOrigin,
	}, nil
}

// RegisterRoutes registers all transport endpoints on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Streaming transport
	mux.HandleFunc("GET /sse", s.handleSSEStream)
	mux.HandleFunc("POST /sse", s.handleSSEMessage)
	mux.HandleFunc("OPTIONS /sse", s.handleSSEPreflight)

	// Direct transport
	mux.HandleFunc("POST /mcp", s.handleStreamable)
	mux.HandleFunc("POST /initialize", s.handleInitialize)
	mux.HandleFunc("POST /tools/list", s.handleToolsList)
	mux.HandleFunc("POST /tools/call", s.handleToolsCall)

	// Direct tool execution
	mux.HandleFunc("GET /tools", s.handleListTools)
	mux.HandleFunc("POST /tools/{name}", s.handleExecuteTool)

	mux.HandleFunc("GET /health", s.handleHealth)
}

// handleHealth reports liveness plus the supported transports.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"timestamp":   time.Now().Format(time.RFC3339),
		"transport":   []string{"sse", "streamable_http"},
		"mcp_version": ProtocolVersion,
	})
}

// handleStreamable is the Streamable HTTP transport endpoint: one protocol
// envelope per POST.
func (s *Server) handleStreamable(w http.ResponseWriter, r *http.Request) {
	req, err := s.readEnvelope(r)
	if err != nil {
		s.logger.Error("streamable request unreadable", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": &JSONRPCError{Code: JSONRPCInternalError, Message: err.Error()},
		})
		return
	}

	resp := s.adapter.Handle(r.Context(), req)
	if resp == nil {
		// Notifications get an empty body, never an envelope
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleInitialize is the compatibility handshake route. It returns the
// bare capability descriptor without envelope framing.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.adapter.CapabilityDescriptor())
}

// handleToolsList is the compatibility listing route.
func (s *Server) handleToolsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.adapter.ListTools())
}

// handleToolsCall is the compatibility call route: body {name, arguments},
// response {content: [...]} without envelope framing.
func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var params CallToolParams
	if err := json.Unmarshal(body, &params); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if params.Name == "" {
		writeDetail(w, http.StatusBadRequest, "Missing tool name")
		return
	}

	result, err := s.dispatcher.Call(r.Context(), params.Name, params.Arguments)
	if err != nil {
		s.writeDispatchError(w, params.Name, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListTools is the direct surface listing: snake_case schema key and
// a total count, no envelope.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	registered := s.registry.List()
	listed := make([]map[string]any, len(registered))
	for i, t := range registered {
		listed[i] = map[string]any{
			"name":         t.Name,
			"description":  t.Description,
			"input_schema": t.InputSchema,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": listed,
		"total": len(listed),
	})
}

// handleExecuteTool executes one tool directly: the body is the raw
// arguments mapping. Dispatch and argument handling are shared with the
// protocol path.
func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	body, err := readBody(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var rawArgs any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &rawArgs); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	s.logger.Info("direct tool execution", "tool", name)

	result, err := s.dispatcher.Call(r.Context(), name, rawArgs)
	if err != nil {
		s.writeDispatchError(w, name, err)
		return
	}

	texts := make([]string, len(result.Content))
	for i, c := range result.Content {
		texts[i] = c.Text
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tool":      name,
		"result":    texts,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// writeDispatchError maps dispatch sentinel errors onto HTTP statuses for
// the non-envelope surfaces.
func (s *Server) writeDispatchError(w http.ResponseWriter, name string, err error) {
	s.logger.Warn("tool execution failed", "tool", name, "error", err)
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		writeDetail(w, http.StatusNotFound, "Unknown tool: "+name)
	case errors.Is(err, tools.ErrInvalidArguments), errors.Is(err, tools.ErrMissingToolName):
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		writeDetail(w, http.StatusInternalServerError, err.Error())
	}
}

// readEnvelope reads and parses one JSON-RPC envelope from the request.
func (s *Server) readEnvelope(r *http.Request) (JSONRPCRequest, error) {
	var req JSONRPCRequest

	body, err := readBody(r)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, errors.New("invalid JSON: " + err.Error())
	}
	return req, nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return nil, errors.New("failed to read request body")
	}
	if int64(len(body)) > MaxRequestBodySize {
		return nil, errors.New("request body too large")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
