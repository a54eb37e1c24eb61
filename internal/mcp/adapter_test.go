// ABOUTME: Tests for the protocol adapter.
// ABOUTME: Covers request/notification classification, routing, and errors.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/fieldbus/cnc-gateway/internal/tools"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testLogWriter{t}, nil))
}

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func newTestAdapter(t *testing.T) (*Adapter, *tools.Registry) {
	t.Helper()
	registry := tools.NewRegistry()
	err := registry.Register(tools.Tool{
		Name:        "echo",
		Description: "Echoes its input",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"text": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (*tools.Result, error) {
			text, _ := args["text"].(string)
			return tools.TextResult(text), nil
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	err = registry.Register(tools.Tool{
		Name:        "broken",
		Description: "Always fails",
		Handler: func(ctx context.Context, args map[string]any) (*tools.Result, error) {
			return nil, fmt.Errorf("boom")
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	logger := testLogger(t)
	dispatcher := tools.NewDispatcher(registry, logger, nil)
	return NewAdapter(registry, dispatcher, "test-gateway", "0.0.1", logger), registry
}

func request(t *testing.T, id, method, params string) JSONRPCRequest {
	t.Helper()
	req := JSONRPCRequest{JSONRPC: "2.0", Method: method}
	if id != "" {
		req.ID = json.RawMessage(id)
	}
	if params != "" {
		req.Params = json.RawMessage(params)
	}
	return req
}

func TestHandle_InitializeRequest(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	resp := adapter.Handle(context.Background(), request(t, "1", "initialize", ""))
	if resp == nil {
		t.Fatal("expected a reply envelope")
	}
	if string(resp.ID) != "1" {
		t.Errorf("expected id echo, got %s", resp.ID)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	if result["protocolVersion"] != ProtocolVersion {
		t.Errorf("unexpected protocol version: %v", result["protocolVersion"])
	}
	info, ok := result["serverInfo"].(map[string]any)
	if !ok || info["name"] != "test-gateway" {
		t.Errorf("unexpected serverInfo: %v", result["serverInfo"])
	}
}

func TestHandle_UnknownMethod(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	resp := adapter.Handle(context.Background(), request(t, "7", "foo", ""))
	if resp == nil {
		t.Fatal("expected a reply envelope")
	}
	if string(resp.ID) != "7" {
		t.Errorf("expected id echo, got %s", resp.ID)
	}
	if resp.Error == nil {
		t.Fatal("expected error")
	}
	if resp.Error.Code != -32603 {
		t.Errorf("expected code -32603, got %d", resp.Error.Code)
	}
	if resp.Error.Message != "Unknown method: foo" {
		t.Errorf("unexpected message: %q", resp.Error.Message)
	}
	if resp.Result != nil {
		t.Error("error reply must not carry a result")
	}
}

func TestHandle_NotificationNeverReplies(t *testing.T) {
	adapter, _ := newTestAdapter(t)

	tests := []struct {
		name   string
		req    JSONRPCRequest
	}{
		{name: "initialized", req: request(t, "", "notifications/initialized", "")},
		{name: "ping", req: request(t, "", "notifications/ping", "")},
		{name: "null id", req: request(t, "null", "notifications/ping", "")},
		{name: "unknown notification", req: request(t, "", "notifications/whatever", "")},
		{name: "unknown method without id", req: request(t, "", "foo", "")},
		{name: "failing call without id", req: request(t, "", "tools/call", `{"name":"broken"}`)},
		{name: "notification method with id", req: request(t, "3", "notifications/ping", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := adapter.Handle(context.Background(), tt.req); resp != nil {
				t.Errorf("expected no reply, got %+v", resp)
			}
		})
	}
}

func TestHandle_ToolsListRoundTrip(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	resp := adapter.Handle(context.Background(), request(t, "2", "tools/list", ""))
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected reply: %+v", resp)
	}

	result, ok := resp.Result.(ListToolsResult)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	if len(result.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(result.Tools))
	}
	if result.Tools[0].Name != "echo" || result.Tools[1].Name != "broken" {
		t.Errorf("registration order not preserved: %+v", result.Tools)
	}
	if result.Tools[0].Description != "Echoes its input" {
		t.Errorf("unexpected description: %q", result.Tools[0].Description)
	}
	if result.Tools[0].InputSchema == nil {
		t.Error("expected input schema to round-trip")
	}
}

func TestHandle_ToolsCall(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	resp := adapter.Handle(context.Background(), request(t, "3", "tools/call", `{"name":"echo","arguments":{"text":"hi"}}`))
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected reply: %+v", resp)
	}

	result, ok := resp.Result.(*tools.Result)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	if result.Text() != "hi" {
		t.Errorf("expected %q, got %q", "hi", result.Text())
	}
}

func TestHandle_ToolsCallStringArgumentsEquivalent(t *testing.T) {
	adapter, _ := newTestAdapter(t)

	structured := adapter.Handle(context.Background(),
		request(t, "4", "tools/call", `{"name":"echo","arguments":{"text":"same"}}`))
	asString := adapter.Handle(context.Background(),
		request(t, "5", "tools/call", `{"name":"echo","arguments":"{\"text\":\"same\"}"}`))

	sr := structured.Result.(*tools.Result)
	tr := asString.Result.(*tools.Result)
	if sr.Text() != tr.Text() {
		t.Errorf("string and structured arguments diverged: %q vs %q", sr.Text(), tr.Text())
	}
}

func TestHandle_ToolsCallMissingName(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	resp := adapter.Handle(context.Background(), request(t, "6", "tools/call", `{"arguments":{}}`))
	if resp == nil || resp.Error == nil {
		t.Fatalf("expected error reply, got %+v", resp)
	}
	if resp.Error.Code != JSONRPCInternalError {
		t.Errorf("expected internal error code, got %d", resp.Error.Code)
	}
}

func TestHandle_ToolsCallUnknownTool(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	resp := adapter.Handle(context.Background(), request(t, "8", "tools/call", `{"name":"nope"}`))
	if resp == nil || resp.Error == nil {
		t.Fatalf("expected error reply, got %+v", resp)
	}
}

func TestHandle_HandlerFailureBecomesResult(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	resp := adapter.Handle(context.Background(), request(t, "9", "tools/call", `{"name":"broken"}`))
	if resp == nil || resp.Error != nil {
		t.Fatalf("handler failures must not become protocol errors: %+v", resp)
	}

	result := resp.Result.(*tools.Result)
	if !result.IsError {
		t.Error("expected error result")
	}
	if result.Text() != "Error executing broken: boom" {
		t.Errorf("unexpected text: %q", result.Text())
	}
}
