// Package mcpserver exposes read-only job visibility over the Model
// Context Protocol, so agent tooling can query decode status without
// scraping the HTTP JSON routes.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gopher2/trunk-decoder/internal/queue"
)

// JobView is the minimal job surface the MCP tools need. *queue.Tracker
// satisfies both JobView and RecentLister directly, so this package
// never imports queue's internals beyond Job/Tracker.
type JobView interface {
	Get(id string) (queue.Job, error)
}

// RecentLister returns the most recently received jobs, most recent
// first, capped at limit.
type RecentLister interface {
	Recent(limit int) []queue.Job
}

// Server wraps an mcp-go server exposing get_job_status and
// list_recent_jobs tools over a job tracker.
type Server struct {
	jobs       JobView
	recent     RecentLister
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

// New builds a Server. name/version identify this service to MCP
// clients during initialization.
func New(name, version string, jobs JobView, recent RecentLister) *Server {
	s := &Server{jobs: jobs, recent: recent}

	s.mcpServer = server.NewMCPServer(name, version, server.WithToolCapabilities(true))
	s.registerTools()
	s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_job_status",
			mcp.WithDescription("Get the current status of a decode job by id, including its lifecycle stage, timestamps, and error reason if it failed."),
			mcp.WithString("job_id",
				mcp.Required(),
				mcp.Description("The job id returned by the decode submission endpoint"),
			),
		),
		s.handleGetJobStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_recent_jobs",
			mcp.WithDescription("List the most recently submitted decode jobs and their current status, most recent first."),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of jobs to return (default: 10, max: 100)"),
				mcp.DefaultNumber(10.0),
			),
		),
		s.handleListRecentJobs,
	)
}

// ServeHTTP serves the MCP endpoint over the configured HTTP transport.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.ServeHTTP(w, r)
}

// ServeStdio runs the MCP server over stdin/stdout, blocking until the
// client disconnects or an error occurs. Used when mcp.transport is
// "stdio" instead of "http".
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := request.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	job, err := s.jobs.Get(jobID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("job %s not found", jobID)), nil
	}

	data, err := json.Marshal(jobSummary(job))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal job: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleListRecentJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limitFloat := request.GetFloat("limit", 10.0)
	limit := int(limitFloat)
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	jobs := s.recent.Recent(limit)
	summaries := make([]jobSummaryView, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, jobSummary(j))
	}

	data, err := json.Marshal(summaries)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal jobs: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

type jobSummaryView struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReceivedAt  string `json:"received_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	ErrorReason string `json:"error_reason,omitempty"`
}

func jobSummary(j queue.Job) jobSummaryView {
	v := jobSummaryView{
		ID:          j.ID,
		Status:      j.Status.String(),
		ReceivedAt:  j.ReceivedAt.Format("2006-01-02T15:04:05Z07:00"),
		ErrorReason: j.ErrorReason,
	}
	if !j.CompletedAt.IsZero() {
		v.CompletedAt = j.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return v
}
