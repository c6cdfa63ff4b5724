package main

import (
	"context"

	"github.com/chatflow-ai/chatflow/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Connects to the configured store, AI and delivery services and serves the
WhatsApp webhook, a status route and Prometheus metrics over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("store") {
			cfg.Store, _ = cmd.Flags().GetString("store")
		}
		if cmd.Flags().Changed("batch-mode") {
			cfg.Engine.BatchMode, _ = cmd.Flags().GetString("batch-mode")
		}
		flowPath, _ := cmd.Flags().GetString("flow")

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		sc := cli.NewSignalContext(context.Background())
		defer sc.Cancel()

		err = cli.Serve(sc, cfg, logger, cli.ServeOptions{FlowPath: flowPath})
		if sig := sc.Signal(); sig != nil {
			logger.Info("Stopped by signal", "signal", sig.String())
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides config, e.g. :8000)")
	serveCmd.Flags().String("store", "", "Store backend: mongo or memory (overrides config)")
	serveCmd.Flags().String("batch-mode", "", "Webhook batch handling: first or all (overrides config)")
	serveCmd.Flags().String("flow", "", "Flow file (JSON or YAML) to activate before serving")
}
