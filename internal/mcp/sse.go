// ABOUTME: SSE transport: long-lived heartbeat stream plus a POST
// ABOUTME: side-channel for protocol envelopes and a CORS preflight route.

package mcp

import (
	"net/http"
	"time"
)

// preflightMaxAge caches the CORS preflight for 24 hours.
const preflightMaxAge = "86400"

// handleSSEStream opens a long-lived event stream. The stream carries no
// protocol replies, only periodic keep-alive heartbeats; protocol messages
// travel over POST /sse. The loop checks for peer disconnection before
// every write and stops when the peer goes away.
func (s *Server) handleSSEStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	s.setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Info("sse stream opened", "remote", r.RemoteAddr)

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("sse stream closed", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			// Empty data frame keeps the connection alive
			if _, err := w.Write([]byte("data: \n\n")); err != nil {
				s.logger.Warn("sse heartbeat write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// handleSSEMessage delivers one protocol envelope over the POST
// side-channel. Notifications return an empty JSON body; malformed bodies
// become a full error envelope with a null id.
func (s *Server) handleSSEMessage(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w)

	req, err := s.readEnvelope(r)
	if err != nil {
		s.logger.Error("sse request unreadable", "error", err)
		writeJSON(w, http.StatusInternalServerError, JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   &JSONRPCError{Code: JSONRPCInternalError, Message: err.Error()},
		})
		return
	}

	resp := s.adapter.Handle(r.Context(), req)
	if resp == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSSEPreflight answers the CORS preflight with fixed allow-all
// headers.
func (s *Server) handleSSEPreflight(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Max-Age", preflightMaxAge)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
	w.Header().Set("Access-Control-Allow-Headers", "*")
}
