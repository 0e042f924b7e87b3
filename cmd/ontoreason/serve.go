package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/ontoreason/internal/httpapi"
	"github.com/cognicore/ontoreason/internal/logging"
	"github.com/cognicore/ontoreason/internal/mcpserver"
	"github.com/cognicore/ontoreason/pkg/ontoreason"
)

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP/JSON API",
		Long: `Serve the HTTP/JSON API under /api/v1. The listener opens before the
ontology is loaded; API requests get 503 until the reasoner is ready.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger, err := logging.New(cfg.Log.Level)
			if err != nil {
				return err
			}
			defer logger.Sync()

			srv := httpapi.New(ontoreason.Gate, cfg.Server, logger)
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe(ctx) }()

			r, err := ontoreason.FromConfig(ctx, cfg, logger)
			if err != nil {
				stop()
				<-errc
				return err
			}
			defer r.Close()
			ontoreason.Gate.Set(r)
			logger.Info("reasoner ready", zap.String("addr", cfg.Server.Addr))

			return <-errc
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func mcpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, r, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer r.Close()

			ontoreason.Gate.Set(r)
			logger.Info("mcp server starting on stdio")
			return mcpserver.New(ontoreason.Gate, version, logger).Serve()
		},
	}
}
