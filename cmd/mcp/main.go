package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/TenderRAG/internal/bootstrap"
	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/mcpServer"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

func main() {
	configPath := flag.String("config", "", "optional YAML settings file")
	flag.Parse()

	settings, err := config.Load(*configPath)
	//stdout carries the MCP protocol, logs go to stderr
	logger_i.InitTo(os.Stderr, settings.IsProd, settings.LogLevel)
	logger := logger_i.NewLogger("mcp")
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.New(ctx, settings)
	if err != nil {
		logger.Error("Could not initialize components", "error", err)
		os.Exit(1)
	}
	server, err := mcpServer.NewServer(components.Service)
	if err != nil {
		logger.Error("Could not create MCP server", "error", err)
		os.Exit(1)
	}
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("MCP server stopped", "error", err)
		os.Exit(1)
	}
}
