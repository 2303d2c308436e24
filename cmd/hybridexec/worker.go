package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deixis/hybridexec/internal/config"
	"github.com/deixis/hybridexec/internal/logging"
	worker "github.com/deixis/hybridexec/internal/mcp"
	"github.com/deixis/hybridexec/internal/metrics"
	"github.com/deixis/hybridexec/internal/runner"
)

func newWorkerCmd() *cobra.Command {
	var (
		httpAddr     string
		roots        bool
		instructions bool
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Serve the execute and inspect tools over MCP",
		Long: `Start a worker that runs commands for remote executors.

The worker speaks MCP over stdio by default. With --http it serves the
streamable HTTP transport on /mcp and Prometheus metrics on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), worker.Instructions)
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return serve(ctx, httpAddr, roots)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	cmd.Flags().BoolVar(&roots, "roots", false, "adopt the client's first root as the workspace")
	cmd.Flags().BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	return cmd
}

func serve(ctx context.Context, httpAddr string, roots bool) error {
	logger := logging.InitLogger("hybridexec-worker")

	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	r := &runner.Runner{
		Workspace: loaded.RepoRoot,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
	}

	opts := []worker.ServerOption{worker.WithLogger(logger)}
	if roots {
		opts = append(opts, worker.WithRoots())
	}
	server := worker.NewServer(r, openStore(loaded), opts...)

	if httpAddr != "" {
		return serveHTTP(ctx, logger, server, httpAddr)
	}
	logger.Info().Str("workspace", loaded.RepoRoot).Msg("serving on stdio")
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, logger zerolog.Logger, server *mcpsdk.Server, addr string) error {
	metrics.Register()

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	))
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	logger.Info().Str("addr", addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
