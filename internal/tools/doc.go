// Package tools holds the tool registry and dispatch pipeline.
//
// A Tool pairs a name and input schema with a Handler. The Registry keeps
// tools in registration order; the Dispatcher normalizes wire arguments,
// validates them against the tool's schema, invokes the handler, and
// reports the call to an optional audit hook.
//
// The dispatch pipeline distinguishes two failure planes: lookup and
// argument problems are returned as errors (ErrUnknownTool,
// ErrInvalidArguments, ErrMissingToolName) for the protocol layer to shape
// into wire errors, while handler failures are folded into the Result as
// textual content with IsError set.
package tools
