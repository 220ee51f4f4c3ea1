package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mbocsi/dartlink/proto"
	"github.com/mbocsi/dartlink/robot"
)

// MCPServer exposes every registry function as an MCP tool over stdio.
type MCPServer struct {
	Server *server.MCPServer

	registry *robot.Registry
	sessions *SessionRegistry
	in       io.Reader
	out      io.Writer
}

func NewMCPServer(srv *Server, version string) *MCPServer {
	m := &MCPServer{
		Server:   server.NewMCPServer("dartlink", version),
		registry: srv.Registry(),
		sessions: srv.Sessions(),
		in:       os.Stdin,
		out:      os.Stdout,
	}
	for _, spec := range m.registry.Specs() {
		m.Server.AddTool(toolFromSpec(spec), m.callHandler(spec.Name))
	}

	listSessions := mcp.NewTool("list_sessions", mcp.WithDescription("List the client sessions connected to this server"))
	m.Server.AddTool(listSessions, m.handleListSessions)
	return m
}

func (m *MCPServer) Start(ctx context.Context) error {
	slog.Info("Started stdio MCP server")
	defer func() {
		slog.Info("Shut down stdio MCP server")
	}()
	err := server.NewStdioServer(m.Server).Listen(ctx, m.in, m.out)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Shutdown is a no-op; the stdio loop stops with the context passed to Start.
func (m *MCPServer) Shutdown() error {
	return nil
}

func toolFromSpec(spec proto.FunctionSpec) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(spec.Description)}
	for name, dt := range spec.Args {
		props := []mcp.PropertyOption{}
		if dt.Description != "" {
			props = append(props, mcp.Description(dt.Description))
		} else if dt.Unit != "" {
			props = append(props, mcp.Description("in "+dt.Unit))
		}
		if !dt.Optional {
			props = append(props, mcp.Required())
		}

		switch dt.Type {
		case "number", "integer":
			opts = append(opts, mcp.WithNumber(name, props...))
		case "bool":
			opts = append(opts, mcp.WithBoolean(name, props...))
		case "vector":
			props = append(props, mcp.Items(map[string]any{"type": "number"}))
			opts = append(opts, mcp.WithArray(name, props...))
		case "object":
			opts = append(opts, mcp.WithObject(name, props...))
		default:
			opts = append(opts, mcp.WithString(name, props...))
		}
	}
	return mcp.NewTool(spec.Name, opts...)
}

func (m *MCPServer) callHandler(function string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.GetRawArguments().(map[string]any)
		resp := m.registry.Dispatch(ctx, function, args)

		jsonBytes, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return mcp.NewToolResultError(string(jsonBytes)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}
}

func (m *MCPServer) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := m.sessions.List()
	res := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		res = append(res, s.Info())
	}

	jsonBytes, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
