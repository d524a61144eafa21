package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/facefit/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Serve the fitting job API and a status page. Job requests are merged over
the fit section of the configuration; render settings apply to every job.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg.CheckpointDir)
		if err != nil {
			return err
		}

		srv := server.NewServer(cfg.Server.Addr, cfg, st)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case sig := <-sigCh:
			logger.Info("Received signal, shutting down", "signal", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		logger.Info("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagCfg.Server.Addr, "addr", ":8080", "Server listen address")
	addRenderFlags(serveCmd)
	addCheckpointDirFlag(serveCmd)
	rootCmd.AddCommand(serveCmd)
}
