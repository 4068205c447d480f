// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Gebo note and connection tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/gebo/internal/derive"
	"github.com/starford/gebo/internal/notestore"
)

// Server wraps the MCP server with Gebo tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *notestore.Service
	pipeline *derive.Pipeline
}

// New creates a new MCP server with all Gebo tools registered.
func New(svc *notestore.Service, pipeline *derive.Pipeline) *Server {
	s := &Server{svc: svc, pipeline: pipeline}

	s.mcp = server.NewMCPServer(
		"Gebo",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes, newest first, with their ids and content."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read one note by id."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note from raw text. The first line becomes the title. "+
			"Relations to existing notes are derived automatically before the tool returns."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text (must be non-empty)")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("list_connections",
		mcp.WithDescription("List all connections between notes, newest first."),
	), s.listConnections)

	s.mcp.AddTool(mcp.NewTool("create_connection",
		mcp.WithDescription("Create a manual connection between two existing notes."),
		mcp.WithNumber("sourceId", mcp.Required(), mcp.Description("Source note id")),
		mcp.WithNumber("targetId", mcp.Required(), mcp.Description("Target note id")),
		mcp.WithString("label", mcp.Description("Optional label")),
	), s.createConnection)

	s.mcp.AddTool(mcp.NewTool("reprocess_connections",
		mcp.WithDescription("Re-run relation derivation over every pair of notes. "+
			"May create duplicate connections for pairs already connected."),
	), s.reprocessConnections)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.svc.GetNotes(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(notes, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("note %d: %v", id, err)), nil
	}
	out, _ := json.MarshalIndent(note, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	note, err := s.svc.CreateNote(ctx, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	created := 0
	if corpus, listErr := s.svc.GetNotes(ctx); listErr == nil {
		created = s.pipeline.DeriveForNote(ctx, note, corpus)
	}

	return mcp.NewToolResultText(fmt.Sprintf("created note %d (%d connections derived)", note.ID, created)), nil
}

func (s *Server) listConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conns, err := s.svc.GetConnections(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(conns, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID, err := req.RequireInt("sourceId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	targetID, err := req.RequireInt("targetId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var label *string
	if l := req.GetString("label", ""); l != "" {
		label = &l
	}

	conn, err := s.svc.CreateConnection(ctx, int64(sourceID), int64(targetID), label, false, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(conn, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) reprocessConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	created, err := s.pipeline.Reprocess(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created %d connections", created)), nil
}
