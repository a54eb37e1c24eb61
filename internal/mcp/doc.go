// Package mcp implements the MCP-compatible protocol surface.
//
// The Adapter interprets JSON-RPC 2.0 envelopes independently of how they
// arrived: it classifies each message as a request (id present, exactly one
// reply) or a notification (no id, never any reply), routes the method, and
// shapes the result or error. The Server exposes the adapter over two
// transports that share the one adapter instance: an SSE stream with a
// POST side-channel, and a direct Streamable HTTP endpoint, plus
// compatibility routes and a direct tool-execution surface for callers
// that skip envelope framing.
package mcp
