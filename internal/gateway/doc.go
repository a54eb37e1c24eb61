// Package gateway assembles and runs the cnc-gateway server.
//
// New wires the tool registry, dispatcher, upstream client, tool packs,
// optional call ledger, and the MCP protocol server into one http.Server;
// Run serves it until the context is cancelled, then shuts down gracefully.
package gateway
