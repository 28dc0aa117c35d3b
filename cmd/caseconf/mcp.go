package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/caseconf"
	"github.com/aretw0/caseconf/internal/cli"
	"github.com/aretw0/caseconf/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes sessions of the blueprint as MCP tools, so that agents can configure cases.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := optionsFrom(cmd)
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		logger, err := cli.NewLogger(opts)
		if err != nil {
			return err
		}
		engine, cleanup, err := cli.NewEngine(opts, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := mcp.NewServer(engine.Manager(), mcp.WithLogger(logger), mcp.WithVersion(caseconf.Version))

		switch transport {
		case "stdio":
			// Keep stdout for JSON-RPC.
			log.SetOutput(os.Stderr)
			logger.Info("Starting caseconf MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			ctx := cli.NewSignalContext(context.Background())
			defer ctx.Cancel()
			logger.Info("Starting caseconf MCP server (SSE)", "port", port)
			return srv.ServeSSE(ctx, port)
		default:
			return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
