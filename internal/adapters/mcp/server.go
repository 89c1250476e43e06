// Package mcpadapter exposes the analysis pipeline as Model Context Protocol tools.
package mcpadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/core/ports"
	"github.com/medinsight/report-analyzer/internal/core/usecase"
)

const (
	serverName    = "report-analyzer"
	serverVersion = "1.0.0"

	toolAnalyzeText = "analyze_report_text"
	toolGetJob      = "get_analysis_job"
)

type Server struct {
	analyzer ports.ReportAnalyzer
	jobs     ports.JobReader
	mcp      *server.MCPServer
}

// New registers the tools. jobs may be nil when async processing is disabled.
func New(analyzer ports.ReportAnalyzer, jobs ports.JobReader) *Server {
	s := &Server{
		analyzer: analyzer,
		jobs:     jobs,
		mcp: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(false),
			server.WithInstructions("Analyze medical report text: disease categories, clinical findings and recommendations."),
		),
	}

	s.mcp.AddTool(mcp.NewTool(toolAnalyzeText,
		mcp.WithDescription("Run the full analysis pipeline on plain medical report text."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Report text to analyze")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.analyzeText)

	if jobs != nil {
		s.mcp.AddTool(mcp.NewTool(toolGetJob,
			mcp.WithDescription("Fetch status and result of an asynchronous analysis job."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Analysis job id")),
			mcp.WithReadOnlyHintAnnotation(true),
		), s.getJob)
	}
	return s
}

// ServeStdio blocks serving JSON-RPC over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) analyzeText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil || strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	result, err := s.analyzer.Analyze(ctx, domain.Document{
		Filename: "report.txt",
		Format:   domain.FormatPlainText,
		Content:  []byte(text),
	})
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", toolAnalyzeText, "error", err)
		return mcp.NewToolResultError(usecase.PublicMessage(err)), nil
	}
	return mcp.NewToolResultJSON(result)
}

func (s *Server) getJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil || strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	job, err := s.jobs.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return mcp.NewToolResultError("analysis job not found"), nil
		}
		slog.Warn("mcp_tool_failed", "tool", toolGetJob, "error", err)
		return mcp.NewToolResultError("failed to load analysis job"), nil
	}
	return mcp.NewToolResultJSON(job)
}
