package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/riskrun/riskrun/internal/fx"
	"github.com/riskrun/riskrun/internal/metrics"
	"github.com/riskrun/riskrun/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation engine over HTTP",
		Long: `Serve exposes POST /v1/simulate (scenario YAML body), POST /v1/plan
(inlined portfolio bundle), GET /health, and GET /metrics (Prometheus).`,
		RunE: runServe,
	}
	cmd.Flags().String("host", "127.0.0.1", "Listen host")
	cmd.Flags().Int("port", 8080, "Listen port")
	cmd.Flags().String("fx", "", "Path to an fx_config currency document")
	cmd.Flags().Float64("rate-limit", 10, "Requests per second admitted")
	cmd.Flags().Int("max-trials", 1_000_000, "Maximum trials accepted per request")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	fxPath, _ := cmd.Flags().GetString("fx")
	rps, _ := cmd.Flags().GetFloat64("rate-limit")
	maxTrials, _ := cmd.Flags().GetInt("max-trials")

	fxCfg, err := fx.Load(fxPath)
	if err != nil {
		return err
	}

	cfg := server.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.FX = fxCfg
	cfg.RateLimit = rate.Limit(rps)
	cfg.MaxTrials = maxTrials

	srv, err := server.New(cfg, metrics.NewRegistry())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}
