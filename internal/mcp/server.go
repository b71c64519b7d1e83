package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lockcycled/internal/core"
	"lockcycled/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes the lock-cycling operations as MCP tools over stdio.
type MCPServer struct {
	store  *store.Store
	engine *core.Engine
	logger *slog.Logger
}

// NewMCPServer creates a new MCP server instance.
func NewMCPServer(store *store.Store, engine *core.Engine, logger *slog.Logger) *MCPServer {
	return &MCPServer{
		store:  store,
		engine: engine,
		logger: logger,
	}
}

// Run starts the MCP server using stdio transport.
func (s *MCPServer) Run() error {
	mcpServer := server.NewMCPServer(
		"lockcycled",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.logger.Info("MCP server starting on stdio")

	return server.ServeStdio(mcpServer)
}

// registerTools registers all available MCP tools.
func (s *MCPServer) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("lock_start",
		mcp.WithDescription("Start the session-lock cycling run. Requires a stored unlock secret; configuration comes from the daemon environment."),
	), s.handleStart)

	mcpServer.AddTool(mcp.NewTool("lock_stop",
		mcp.WithDescription("Stop the active cycling run at its next checkpoint."),
	), s.handleStop)

	mcpServer.AddTool(mcp.NewTool("lock_status",
		mcp.WithDescription("Report whether a cycling run is active and how many cycles completed."),
	), s.handleStatus)

	mcpServer.AddTool(mcp.NewTool("lock_set_secret",
		mcp.WithDescription("Store the unlock credential the cycler replays. Independent of run state."),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("The credential; stored as an opaque string"),
		),
	), s.handleSetSecret)

	mcpServer.AddTool(mcp.NewTool("lock_clear_secret",
		mcp.WithDescription("Remove the stored unlock credential."),
	), s.handleClearSecret)

	mcpServer.AddTool(mcp.NewTool("lock_list_sessions",
		mcp.WithDescription("List recent cycling sessions, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of sessions to return, default 10"),
			mcp.Min(1),
		),
	), s.handleListSessions)

	mcpServer.AddTool(mcp.NewTool("lock_list_cycles",
		mcp.WithDescription("List the cycles of one session in order."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of cycles to return, default 50"),
			mcp.Min(1),
		),
	), s.handleListCycles)

	mcpServer.AddTool(mcp.NewTool("lock_preview_interval",
		mcp.WithDescription("Validate a lock-hold interval pair (\"<number><h|m|s>\") and show sample draws."),
		mcp.WithString("min",
			mcp.Required(),
			mcp.Description("Minimum lock-hold span, e.g. '10m'"),
		),
		mcp.WithString("max",
			mcp.Required(),
			mcp.Description("Maximum lock-hold span, e.g. '20m'"),
		),
	), s.handlePreviewInterval)

	s.logger.Info("MCP tools registered", "count", 8)
}

func (s *MCPServer) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.engine.Start(ctx); err != nil {
		if errors.Is(err, core.ErrNoSecret) {
			return mcp.NewToolResultError("no unlock secret stored; call lock_set_secret first"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to start cycling: %v", err)), nil
	}
	status := s.engine.Status()
	return mcp.NewToolResultText(fmt.Sprintf("Cycling started\nSession: %s\nMode: %s", status.SessionID, status.Mode)), nil
}

func (s *MCPServer) handleStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.engine.Stop()
	return mcp.NewToolResultText("Stop requested; the run ends at its next checkpoint"), nil
}

func (s *MCPServer) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.engine.Status()
	if !status.Active {
		return mcp.NewToolResultText("No cycling run is active"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Active session: %s\nMode: %s\nStarted: %s\nCycles completed: %d",
		status.SessionID, status.Mode, status.StartedAt.Format(time.RFC3339), status.Cycles)), nil
}

func (s *MCPServer) handleSetSecret(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	value := mcp.ParseString(request, "value", "")
	if err := s.engine.SetSecret(ctx, value); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store secret: %v", err)), nil
	}
	return mcp.NewToolResultText("Unlock secret stored"), nil
}

func (s *MCPServer) handleClearSecret(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.engine.ClearSecret(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to clear secret: %v", err)), nil
	}
	return mcp.NewToolResultText("Unlock secret cleared"), nil
}

func (s *MCPServer) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(mcp.ParseFloat64(request, "limit", 10))
	sessions, err := s.store.ListSessions(ctx, limit, 0)
	if err != nil {
		s.logger.Error("list sessions", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
	}
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No sessions recorded"), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d sessions:\n\n", len(sessions))
	for _, session := range sessions {
		fmt.Fprintf(&b, "%s\n", session.ID)
		fmt.Fprintf(&b, "  Mode: %s\n", session.Mode)
		fmt.Fprintf(&b, "  Status: %s\n", session.Status)
		fmt.Fprintf(&b, "  Started: %s\n", session.StartedAt.Format(time.RFC3339))
		if session.EndedAt != nil {
			fmt.Fprintf(&b, "  Ended: %s\n", session.EndedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(&b, "  Cycles: %d\n\n", session.Cycles)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleListCycles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(request, "session_id", "")
	limit := int(mcp.ParseFloat64(request, "limit", 50))
	cycles, err := s.store.ListCycles(ctx, sessionID, limit, 0)
	if err != nil {
		s.logger.Error("list cycles", "session_id", sessionID, "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to list cycles: %v", err)), nil
	}
	if len(cycles) == 0 {
		return mcp.NewToolResultText("No cycles recorded for this session"), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d cycles:\n\n", len(cycles))
	for _, cycle := range cycles {
		fmt.Fprintf(&b, "#%d %s\n", cycle.Seq, cycle.Status)
		fmt.Fprintf(&b, "  Lock hold: %s\n", cycle.LockHold)
		fmt.Fprintf(&b, "  Started: %s\n", cycle.StartedAt.Format(time.RFC3339))
		if cycle.Error != nil {
			fmt.Fprintf(&b, "  Error: %s\n", *cycle.Error)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handlePreviewInterval(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minRaw := mcp.ParseString(request, "min", "")
	maxRaw := mcp.ParseString(request, "max", "")
	min, err := core.ParseSpan(minRaw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	max, err := core.ParseSpan(maxRaw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := core.ValidateInterval(min, max); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Interval %s..%s is valid. Sample draws:\n", min, max)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, "  %s\n", core.DrawInterval(min, max))
	}
	return mcp.NewToolResultText(b.String()), nil
}
