package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cwbudde/facefit/internal/config"
	"github.com/cwbudde/facefit/internal/render"
	"github.com/cwbudde/facefit/internal/runner"
)

var listenAddr string

var renderServerCmd = &cobra.Command{
	Use:   "render-server",
	Short: "Serve CPU renders over gRPC",
	Long: `Expose the CPU renderer as a gRPC render service. Fitting jobs reach it
with --backend grpc --address <host:port>. Model, dimensions and observation
size must match the jobs that use it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		model, err := runner.LoadModel(cfg)
		if err != nil {
			return err
		}
		backend, err := render.NewCPURenderer(model, cfg.Render.Rows, cfg.Render.Cols)
		if err != nil {
			return err
		}

		lis, err := net.Listen("tcp", listenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
		}
		logger.Info("Render backend ready",
			"dimensions", model.Dimensions(),
			"vertices", model.VertexCount(),
			"rows", cfg.Render.Rows,
			"cols", cfg.Render.Cols,
		)
		return render.Serve(ctx, lis, backend, logger)
	},
}

func init() {
	d := config.Default()
	f := renderServerCmd.Flags()
	f.StringVar(&listenAddr, "listen", ":50051", "gRPC listen address")
	f.StringVar(&flagCfg.Fit.ModelPath, "model", "", "Face model JSON file (default: synthetic model)")
	f.IntVar(&flagCfg.Fit.Dimensions, "dims", d.Fit.Dimensions, "Shape coefficients of the synthetic model")
	f.IntVar(&flagCfg.Render.Rows, "rows", d.Render.Rows, "Observation rows")
	f.IntVar(&flagCfg.Render.Cols, "cols", d.Render.Cols, "Observation columns")
	f.IntVar(&flagCfg.Render.ModelResolution, "resolution", d.Render.ModelResolution, "Latitude bands of the synthetic model")
	rootCmd.AddCommand(renderServerCmd)
}
