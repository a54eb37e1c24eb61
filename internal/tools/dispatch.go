// ABOUTME: Dispatches tool calls: argument normalization, schema validation,
// ABOUTME: handler invocation, and post-call auditing.

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrMissingToolName indicates a tool call with no name.
var ErrMissingToolName = errors.New("tool name is required")

// Audit describes a completed tool call for the audit hook.
type Audit struct {
	Tool     string
	Duration time.Duration
	IsError  bool
}

// AuditFunc observes completed tool calls. Hooks must not block dispatch.
type AuditFunc func(ctx context.Context, a Audit)

// Dispatcher routes tool calls through the registry.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	audit    AuditFunc
}

// NewDispatcher creates a dispatcher over the given registry. The audit
// hook may be nil.
func NewDispatcher(registry *Registry, logger *slog.Logger, audit AuditFunc) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger.With("component", "dispatch"),
		audit:    audit,
	}
}

// Call executes a named tool with raw wire arguments.
//
// Lookup and argument errors are returned as errors for the protocol layer
// to shape. Handler failures never surface as errors: they become a textual
// result with IsError set, so clients always receive tool output.
func (d *Dispatcher) Call(ctx context.Context, name string, rawArgs any) (*Result, error) {
	if name == "" {
		return nil, ErrMissingToolName
	}

	tool, err := d.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	args, form, err := d.normalize(name, rawArgs)
	if err != nil {
		return nil, err
	}

	if resolved := d.registry.resolvedSchema(name); resolved != nil {
		if err := resolved.Validate(args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
	}

	d.logger.Info("dispatching tool call", "tool", name, "arg_form", form)

	start := time.Now()
	result, err := tool.Handler(ctx, args)
	elapsed := time.Since(start)

	if err != nil {
		d.logger.Error("tool call failed", "tool", name, "duration", elapsed, "error", err)
		result = ErrorResult(fmt.Sprintf("Error executing %s: %v", name, err))
	} else if result == nil {
		result = ErrorResult(fmt.Sprintf("Error executing %s: handler returned no result", name))
	}

	if d.audit != nil {
		d.audit(ctx, Audit{Tool: name, Duration: elapsed, IsError: result.IsError})
	}

	d.logger.Debug("tool call complete", "tool", name, "duration", elapsed, "is_error", result.IsError)
	return result, nil
}

func (d *Dispatcher) normalize(name string, rawArgs any) (map[string]any, ArgForm, error) {
	args, form, err := NormalizeArguments(rawArgs)
	if err != nil {
		return nil, form, err
	}
	if form == ArgUnrecognized {
		d.logger.Warn("unrecognized arguments shape, using empty arguments",
			"tool", name, "type", fmt.Sprintf("%T", rawArgs))
	}
	return args, form, nil
}
