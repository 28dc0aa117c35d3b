package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/caseconf/internal/logging"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURI identifies the constraint graph resource.
const GraphURI = "caseconf://graph"

// SessionArgs selects a live session.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// OpenArgs are the arguments of open_session.
type OpenArgs struct {
	SessionID string `json:"session_id,omitempty"`
}

// ValueArgs are the arguments of set_value, unset_value and explain.
type ValueArgs struct {
	SessionID string `json:"session_id"`
	Key       string `json:"key"`
	Value     string `json:"value,omitempty"`
}

// StageArgs are the arguments of reset_stage.
type StageArgs struct {
	SessionID string `json:"session_id"`
	Stage     int    `json:"stage"`
}

// MutationResponse is returned by every tool that changes a session.
type MutationResponse struct {
	Batch domain.Batch `json:"batch" jsonschema_description:"The deltas produced by the call"`
	View  session.View `json:"view" jsonschema_description:"The session after the call"`
}

// ExplainResponse lists the rules excluding a value.
type ExplainResponse struct {
	Key     string   `json:"key"`
	Value   string   `json:"value"`
	Legal   bool     `json:"legal" jsonschema_description:"True when no rule excludes the value"`
	Reasons []string `json:"reasons" jsonschema_description:"Messages of the rules excluding the value"`
}

// SnapshotResponse is the exported configuration of a finished session.
type SnapshotResponse struct {
	ID     string                  `json:"id"`
	Taken  time.Time               `json:"taken"`
	Values map[string]domain.Value `json:"values"`
}

// Server exposes a session.Manager as an MCP server.
type Server struct {
	manager   *session.Manager
	mcpServer *server.MCPServer
	logger    *slog.Logger
	version   string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version advertised to clients.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(mgr *session.Manager, opts ...Option) *Server {
	s := &Server{
		manager: mgr,
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("caseconf-mcp", s.version)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for embedding in other transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("open_session",
		mcp.WithDescription("Open a configuration session. The first stage becomes active."),
		mcp.WithString("session_id", mcp.Description("Session ID (generated when omitted)")),
		mcp.WithOutputSchema[session.View](),
	), mcp.NewStructuredToolHandler(s.handleOpen))

	s.mcpServer.AddTool(mcp.NewTool("describe_session",
		mcp.WithDescription("Describe the stages, values and legal domains of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[session.View](),
	), mcp.NewStructuredToolHandler(s.handleDescribe))

	s.mcpServer.AddTool(mcp.NewTool("set_value",
		mcp.WithDescription("Assign a value to a variable and propagate the consequences."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Variable key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Value, which must be in the current domain")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleSet))

	s.mcpServer.AddTool(mcp.NewTool("unset_value",
		mcp.WithDescription("Clear the value of a variable and propagate the consequences."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Variable key")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleUnset))

	s.mcpServer.AddTool(mcp.NewTool("advance",
		mcp.WithDescription("Complete the active stage and activate the next one."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleAdvance))

	s.mcpServer.AddTool(mcp.NewTool("reset_stage",
		mcp.WithDescription("Clear a stage and every later stage, making it active again."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithNumber("stage", mcp.Required(), mcp.Description("Zero-based stage index")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleReset))

	s.mcpServer.AddTool(mcp.NewTool("explain",
		mcp.WithDescription("List the rules that exclude a value from the domain of a variable."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Variable key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Candidate value")),
		mcp.WithOutputSchema[ExplainResponse](),
	), mcp.NewStructuredToolHandler(s.handleExplain))

	s.mcpServer.AddTool(mcp.NewTool("export_snapshot",
		mcp.WithDescription("Export the configuration of a session whose stages are all complete."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[SnapshotResponse](),
	), mcp.NewStructuredToolHandler(s.handleExport))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Render the constraint graph as a Mermaid flowchart, highlighting a session when given."),
		mcp.WithString("session_id", mcp.Description("Session to overlay (optional)")),
	), s.handleGraph)
}

func (s *Server) handleOpen(ctx context.Context, _ mcp.CallToolRequest, args OpenArgs) (session.View, error) {
	id, err := s.manager.Open(ctx, args.SessionID)
	if err != nil {
		return session.View{}, err
	}
	return s.handleDescribe(ctx, mcp.CallToolRequest{}, SessionArgs{SessionID: id})
}

func (s *Server) handleDescribe(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (session.View, error) {
	var view session.View
	err := s.manager.View(ctx, args.SessionID, func(sess *session.Session) error {
		var err error
		view, err = sess.Describe()
		return err
	})
	return view, err
}

func (s *Server) handleSet(ctx context.Context, _ mcp.CallToolRequest, args ValueArgs) (MutationResponse, error) {
	return s.mutate(ctx, args.SessionID, func(sess *session.Session) (domain.Batch, error) {
		return sess.SetValue(args.Key, domain.Value(args.Value))
	})
}

func (s *Server) handleUnset(ctx context.Context, _ mcp.CallToolRequest, args ValueArgs) (MutationResponse, error) {
	return s.mutate(ctx, args.SessionID, func(sess *session.Session) (domain.Batch, error) {
		return sess.Unset(args.Key)
	})
}

func (s *Server) handleAdvance(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (MutationResponse, error) {
	return s.mutate(ctx, args.SessionID, (*session.Session).Advance)
}

func (s *Server) handleReset(ctx context.Context, _ mcp.CallToolRequest, args StageArgs) (MutationResponse, error) {
	return s.mutate(ctx, args.SessionID, func(sess *session.Session) (domain.Batch, error) {
		return sess.ResetStage(args.Stage)
	})
}

func (s *Server) mutate(ctx context.Context, id string, fn func(*session.Session) (domain.Batch, error)) (MutationResponse, error) {
	var resp MutationResponse
	err := s.manager.Update(ctx, id, func(sess *session.Session) error {
		batch, err := fn(sess)
		if err != nil {
			return err
		}
		resp.Batch = batch
		resp.View, err = sess.Describe()
		return err
	})
	if err != nil {
		s.logger.Debug("MCP mutation rejected", "session", id, "err", err)
		return MutationResponse{}, err
	}
	return resp, nil
}

func (s *Server) handleExplain(ctx context.Context, _ mcp.CallToolRequest, args ValueArgs) (ExplainResponse, error) {
	resp := ExplainResponse{Key: args.Key, Value: args.Value, Reasons: []string{}}
	err := s.manager.View(ctx, args.SessionID, func(sess *session.Session) error {
		reasons, err := sess.Explain(args.Key, domain.Value(args.Value))
		if err != nil {
			return err
		}
		resp.Reasons = append(resp.Reasons, reasons...)
		return nil
	})
	if err != nil {
		return ExplainResponse{}, err
	}
	resp.Legal = len(resp.Reasons) == 0
	return resp, nil
}

func (s *Server) handleExport(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (SnapshotResponse, error) {
	snap, err := s.manager.Export(ctx, args.SessionID)
	if err != nil {
		return SnapshotResponse{}, err
	}
	return SnapshotResponse{ID: snap.ID(), Taken: snap.Taken(), Values: snap.Map()}, nil
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chart, err := s.mermaid(ctx, request.GetString("session_id", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph failed: %v", err)), nil
	}
	return mcp.NewToolResultText(chart), nil
}

func (s *Server) mermaid(ctx context.Context, id string) (string, error) {
	g := s.manager.Blueprint().Graph()
	if id == "" {
		return g.Mermaid(nil), nil
	}
	var chart string
	err := s.manager.View(ctx, id, func(sess *session.Session) error {
		chart = g.Mermaid(sess.Overlay())
		return nil
	})
	return chart, err
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Constraint graph",
		mcp.WithResourceDescription("Variables and the rules linking them, as a Mermaid flowchart"),
		mcp.WithMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		chart, err := s.mermaid(ctx, "")
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "text/vnd.mermaid",
				Text:     chart,
			},
		}, nil
	})
}
