package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	mcpadapter "github.com/medinsight/report-analyzer/internal/adapters/mcp"
	"github.com/medinsight/report-analyzer/internal/bootstrap"
	"github.com/medinsight/report-analyzer/internal/config"
	"github.com/medinsight/report-analyzer/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// stdout carries the protocol stream.
	logging.Setup(os.Stderr, "mcp", cfg.LogLevel)

	app, err := bootstrap.New(context.Background(), cfg, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.New(app.Analyzer, app.Jobs)
	if err := srv.ServeStdio(); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
