package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/BalansCollective/weavemesh-git/internal/conflict"
	"github.com/BalansCollective/weavemesh-git/internal/models"
	"github.com/BalansCollective/weavemesh-git/internal/tracker"
)

// Server exposes the conflict detector and repository tracker as MCP tools.
type Server struct {
	detector *conflict.Detector
	tracker  *tracker.Tracker
	version  string
}

// NewServer creates the MCP server wrapper.
func NewServer(d *conflict.Detector, t *tracker.Tracker, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{detector: d, tracker: t, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("weavegit", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.detectConflictsTool())
	srv.AddTool(s.conflictStatisticsTool())
	srv.AddTool(s.recordResolutionTool())
	srv.AddTool(s.learnPatternsTool())
	srv.AddTool(s.trackRepositoryTool())
	srv.AddTool(s.listRepositoriesTool())
	srv.AddTool(s.rescanRepositoryTool())
	srv.AddTool(s.repositoryHealthTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Conflicts
// ---------------------------------------------------------------------------

// weavegit_detect_conflicts
func (s *Server) detectConflictsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("weavegit_detect_conflicts",
		mcp.WithDescription("Detect merge conflicts in a git working copy. Returns a JSON array of conflicts with severity, location, both sides of the content and suggested resolutions. Results are cached per path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the repository working copy")),
		mcp.WithBoolean("refresh", mcp.Description("Ignore the cached result and scan again")),
	)
	return tool, s.handleDetectConflicts
}

func (s *Server) handleDetectConflicts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	if request.GetBool("refresh", false) {
		s.detector.Invalidate(path)
	}

	conflicts, err := s.detector.DetectConflicts(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to detect conflicts: %v", err)), nil
	}
	return jsonResult(conflicts)
}

// weavegit_conflict_statistics
func (s *Server) conflictStatisticsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("weavegit_conflict_statistics",
		mcp.WithDescription("Summarize cached conflicts and resolution history: totals, resolution rate, average resolution time, conflict type distribution and learned pattern count."),
	)
	return tool, s.handleConflictStatistics
}

func (s *Server) handleConflictStatistics(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.detector.Statistics())
}

// weavegit_record_resolution
func (s *Server) recordResolutionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("weavegit_record_resolution",
		mcp.WithDescription("Record the outcome of applying one of a detected conflict's suggested resolutions. Marks the conflict resolved or failed."),
		mcp.WithString("conflict_id", mcp.Required(), mcp.Description("Conflict ID from weavegit_detect_conflicts")),
		mcp.WithString("resolution_id", mcp.Required(), mcp.Description("ID of the suggested resolution that was applied")),
		mcp.WithBoolean("success", mcp.Required(), mcp.Description("Whether the resolution worked")),
		mcp.WithNumber("minutes", mcp.Description("Minutes spent resolving")),
		mcp.WithNumber("quality", mcp.Description("Quality score between 0 and 1")),
		mcp.WithString("description", mcp.Description("What happened")),
		mcp.WithString("participants", mcp.Description("Comma-separated participant names")),
		mcp.WithString("lessons", mcp.Description("Semicolon-separated lessons learned")),
	)
	return tool, s.handleRecordResolution
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) handleRecordResolution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conflictID, err := request.RequireString("conflict_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: conflict_id"), nil
	}
	resolutionID, err := request.RequireString("resolution_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: resolution_id"), nil
	}

	c, err := s.detector.Conflict(conflictID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("conflict not found: %s", conflictID)), nil
	}
	var res *models.Resolution
	for i := range c.Resolutions {
		if c.Resolutions[i].ID == resolutionID {
			res = &c.Resolutions[i]
		}
	}
	if res == nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolution %s is not suggested for conflict %s", resolutionID, conflictID)), nil
	}

	outcome := models.ResolutionOutcome{
		Success:         request.GetBool("success", false),
		Description:     request.GetString("description", ""),
		QualityScore:    request.GetFloat("quality", 0),
		SideEffects:     []string{},
		FollowUpActions: []string{},
	}
	rec, err := s.detector.RecordResolution(ctx, c, *res, outcome,
		request.GetInt("minutes", 0),
		splitList(request.GetString("participants", ""), ","),
		splitList(request.GetString("lessons", ""), ";"),
	)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record resolution: %v", err)), nil
	}
	return jsonResult(rec)
}

// weavegit_learn_patterns
func (s *Server) learnPatternsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("weavegit_learn_patterns",
		mcp.WithDescription("Mine the resolution history for recurring conflict patterns and return them, most frequent first."),
	)
	return tool, s.handleLearnPatterns
}

func (s *Server) handleLearnPatterns(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	learned, err := s.detector.LearnPatterns(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to learn patterns: %v", err)), nil
	}
	return jsonResult(learned)
}

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

// weavegit_track_repository
func (s *Server) trackRepositoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("weavegit_track_repository",
		mcp.WithDescription("Register a repository by path (or look up its existing registration) and return its latest scan."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path inside the repository")),
	)
	return tool, s.handleTrackRepository
}

func (s *Server) handleTrackRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	id, err := s.tracker.GetOrCreateRepositoryID(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to track repository: %v", err)), nil
	}
	r, err := s.tracker.Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(r)
}

// weavegit_list_repositories
func (s *Server) listRepositoriesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("weavegit_list_repositories",
		mcp.WithDescription("List tracked repositories. Returns a JSON array with id, name, path, branch, clean flag and activity score."),
	)
	return tool, s.handleListRepositories
}

func (s *Server) handleListRepositories(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type repoOut struct {
		ID            string  `json:"repository_id"`
		Name          string  `json:"name"`
		Path          string  `json:"path"`
		CurrentBranch string  `json:"current_branch"`
		Clean         bool    `json:"working_directory_clean"`
		ActivityScore float64 `json:"activity_score"`
	}

	repos := s.tracker.GetAll()
	out := make([]repoOut, len(repos))
	for i, r := range repos {
		out[i] = repoOut{
			ID:            r.ID,
			Name:          r.Name,
			Path:          r.Path,
			CurrentBranch: r.CurrentBranch,
			Clean:         r.State.WorkingDirectoryClean,
			ActivityScore: r.Statistics.ActivityScore,
		}
	}
	return jsonResult(out)
}

// weavegit_rescan_repository
func (s *Server) rescanRepositoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("weavegit_rescan_repository",
		mcp.WithDescription("Rescan a tracked repository and return the state changes since the previous scan."),
		mcp.WithString("repository_id", mcp.Required(), mcp.Description("Repository ID")),
	)
	return tool, s.handleRescanRepository
}

func (s *Server) handleRescanRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("repository_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: repository_id"), nil
	}
	_, events, err := s.tracker.Rescan(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to rescan: %v", err)), nil
	}
	if events == nil {
		events = []models.StateChangeEvent{}
	}
	return jsonResult(events)
}

// weavegit_repository_health
func (s *Server) repositoryHealthTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("weavegit_repository_health",
		mcp.WithDescription("Run health checks against a tracked repository and return status, score, checks, issues and recommendations. Pass cached=true to return the last result without checking again."),
		mcp.WithString("repository_id", mcp.Required(), mcp.Description("Repository ID")),
		mcp.WithBoolean("cached", mcp.Description("Return the last stored result if there is one")),
	)
	return tool, s.handleRepositoryHealth
}

func (s *Server) handleRepositoryHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("repository_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: repository_id"), nil
	}
	if request.GetBool("cached", false) {
		if h, ok := s.tracker.GetRepositoryHealth(id); ok {
			return jsonResult(h)
		}
	}
	h, err := s.tracker.CheckHealth(ctx, id)
	if errors.Is(err, tracker.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("repository not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to check health: %v", err)), nil
	}
	return jsonResult(h)
}
