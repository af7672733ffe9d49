package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/calaix/esmena/pkg/api"
)

const mcpServerVersion = "1.0.0"

// cmdMCP serves the esmena tools over stdio for MCP clients. Logs go to
// stderr; stdout carries the protocol.
func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg := loadConfig(*cfgPath, logger)

	eng, submissions := buildEngine(cfg, logger)
	if submissions != nil {
		defer submissions.Close()
	}

	srv := server.NewMCPServer("esmena", mcpServerVersion,
		server.WithToolCapabilities(false),
	)
	api.RegisterMCPTools(srv, eng)

	if err := server.ServeStdio(srv); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server error: %v\n", err)
		os.Exit(1)
	}
}
