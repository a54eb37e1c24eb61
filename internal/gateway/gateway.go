// ABOUTME: Gateway assembly: wires config, upstream client, tool packs,
// ABOUTME: the protocol transports, and the call ledger into one HTTP server.

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fieldbus/cnc-gateway/internal/builtins"
	"github.com/fieldbus/cnc-gateway/internal/config"
	"github.com/fieldbus/cnc-gateway/internal/mcp"
	"github.com/fieldbus/cnc-gateway/internal/notify"
	"github.com/fieldbus/cnc-gateway/internal/store"
	"github.com/fieldbus/cnc-gateway/internal/tools"
	"github.com/fieldbus/cnc-gateway/internal/upstream"
)

// Gateway owns the assembled server.
type Gateway struct {
	config     *config.Config
	logger     *slog.Logger
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	ledger     *store.Ledger
	httpServer *http.Server
}

// New creates a gateway from configuration. The tool registry is populated
// at startup and read-only afterwards.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gw := &Gateway{
		config:   cfg,
		logger:   logger.With("component", "gateway"),
		registry: tools.NewRegistry(),
	}

	var ledger *store.Ledger
	if cfg.Database.Path != "" {
		var err error
		ledger, err = store.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("opening call ledger: %w", err)
		}
		gw.ledger = ledger
	} else {
		logger.Warn("call ledger disabled - no database.path configured")
	}

	gw.dispatcher = tools.NewDispatcher(gw.registry, logger, gw.auditCall)

	client := upstream.NewClient(cfg.Upstream, cfg.Server.Name, cfg.Server.Version, logger)
	cncPack := builtins.NewCNCPack(client, logger)
	if err := cncPack.Register(gw.registry); err != nil {
		return nil, fmt.Errorf("registering CNC tools: %w", err)
	}

	mailer := notify.NewSMTPMailer(cfg.SMTP, logger)
	webhooks := notify.NewWebhookSender(logger)
	notifyPack := builtins.NewNotifyPack(mailer, webhooks, logger)
	if err := notifyPack.Register(gw.registry); err != nil {
		return nil, fmt.Errorf("registering notification tools: %w", err)
	}

	adapter := mcp.NewAdapter(gw.registry, gw.dispatcher, cfg.Server.Name, cfg.Server.Version, logger)
	mcpServer, err := mcp.NewServer(mcp.Config{
		Adapter:           adapter,
		Registry:          gw.registry,
		Dispatcher:        gw.dispatcher,
		Logger:            logger,
		HeartbeatInterval: cfg.SSE.HeartbeatInterval,
		CORSOrigins:       cfg.CORS.Origins,
	})
	if err != nil {
		return nil, fmt.Errorf("creating transport server: %w", err)
	}

	mux := http.NewServeMux()
	mcpServer.RegisterRoutes(mux)
	gw.registerAPIRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("gateway assembled",
		"tools", gw.registry.Len(),
		"http_addr", cfg.Server.HTTPAddr,
		"ledger", ledger != nil,
	)
	return gw, nil
}

// registerAPIRoutes exposes the call ledger when persistence is enabled.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	if g.ledger == nil {
		return
	}
	mux.HandleFunc("GET /api/calls/recent", g.handleRecentCalls)
	mux.HandleFunc("GET /api/stats/usage", g.handleUsageStats)
}

// auditCall records each dispatched tool call. Recording happens off the
// dispatch path so a slow disk never delays the caller.
func (g *Gateway) auditCall(ctx context.Context, a tools.Audit) {
	if g.ledger == nil {
		return
	}
	go func() {
		recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.ledger.RecordCall(recordCtx, a.Tool, a.Duration, a.IsError); err != nil {
			g.logger.Warn("failed to record tool call", "tool", a.Tool, "error", err)
		}
	}()
}

func (g *Gateway) handleRecentCalls(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := g.ledger.RecentCalls(r.Context(), limit)
	if err != nil {
		g.logger.Error("querying recent calls", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.CallRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"calls": records}); err != nil {
		g.logger.Warn("encoding recent calls", "error", err)
	}
}

func (g *Gateway) handleUsageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := g.ledger.Stats(r.Context())
	if err != nil {
		g.logger.Error("querying usage stats", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if stats == nil {
		stats = []store.ToolStats{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"tools": stats}); err != nil {
		g.logger.Warn("encoding usage stats", "error", err)
	}
}

// Handler returns the assembled HTTP handler, for tests and embedding.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Registry returns the populated tool registry.
func (g *Gateway) Registry() *tools.Registry {
	return g.registry
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and closes the ledger.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("shutting down HTTP server: %w", err)
	}
	if g.ledger != nil {
		if err := g.ledger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing call ledger: %w", err)
		}
	}
	g.logger.Info("gateway stopped")
	return firstErr
}
