package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/facefit/internal/config"
	"github.com/cwbudde/facefit/internal/fit"
	"github.com/cwbudde/facefit/internal/imageio"
	"github.com/cwbudde/facefit/internal/runner"
	"github.com/cwbudde/facefit/internal/store"
)

var (
	runJobID   string
	outPath    string
	diffPath   string
	paramsPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fit the face model to a target image",
	Long: `Run a single fitting job and print the resulting cost.

Checkpoints, the cost trace and the best/diff images are written below
--checkpoint-dir unless it is set to an empty string.`,
	Example: `  facefit run --target face.png --method gradient --dims 10 --loops 20
  facefit run --target face.png --method sampler --steps-from-model 2 --out best.png
  facefit run --config fit.yaml --backend grpc --address localhost:50051`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		id := runJobID
		if id == "" {
			id = uuid.New().String()
		}
		job := runner.Job{
			ID:     id,
			Config: cfg,
			Logger: logger,
		}
		return executeJob(ctx, job, cmd.OutOrStdout())
	},
}

func init() {
	addFitFlags(runCmd)
	addRenderFlags(runCmd)
	addCheckpointDirFlag(runCmd)
	addOutputFlags(runCmd)
	runCmd.Flags().StringVar(&runJobID, "job-id", "", "Job ID used for checkpoints (default: random UUID)")
	rootCmd.AddCommand(runCmd)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&outPath, "out", "", "Write the best rendering as PNG")
	cmd.Flags().StringVar(&diffPath, "diff-out", "", "Write the difference to the target as PNG")
	cmd.Flags().StringVar(&paramsPath, "params-out", "", "Write the best parameters as JSON")
}

// openStore returns the checkpoint store for dir, or nil when checkpoints are disabled
func openStore(dir string) (store.Store, error) {
	if dir == "" {
		return nil, nil
	}
	st, err := store.NewFSStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	return st, nil
}

// executeJob runs job, writes the requested outputs and prints a summary to w
func executeJob(ctx context.Context, job runner.Job, w io.Writer) error {
	st, err := openStore(job.Config.CheckpointDir)
	if err != nil {
		return err
	}
	job.Store = st
	job.OnProgress = func(p fit.Progress) {
		logger.Debug("Progress", "loop", p.Loop, "renders", p.Renders, "cost", p.Cost)
	}

	result, err := runner.Run(ctx, job)
	if err != nil {
		if ctx.Err() != nil && st != nil {
			fmt.Fprintf(w, "Interrupted. Resume with: facefit resume %s --checkpoint-dir %s\n", job.ID, job.Config.CheckpointDir)
		}
		return fmt.Errorf("fit failed: %w", err)
	}

	if err := writeOutputs(result, job.Config); err != nil {
		return err
	}
	printSummary(w, result, job.Config)
	return nil
}

func writeOutputs(result *runner.Result, c config.Config) error {
	if outPath != "" {
		if err := imageio.SaveObservation(outPath, result.Observation, c.Fit.Channel); err != nil {
			return fmt.Errorf("failed to save output image: %w", err)
		}
		logger.Info("Saved best rendering", "path", outPath)
	}
	if diffPath != "" {
		target, err := imageio.LoadTarget(c.Fit.TargetPath, c.Render.Rows, c.Render.Cols)
		if err != nil {
			return err
		}
		if err := imageio.SaveDiff(diffPath, result.Observation, target, c.Fit.Channel); err != nil {
			return fmt.Errorf("failed to save diff image: %w", err)
		}
		logger.Info("Saved diff image", "path", diffPath)
	}
	if paramsPath != "" {
		data, err := json.MarshalIndent(result.Params, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
		if err := os.WriteFile(paramsPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write params: %w", err)
		}
		logger.Info("Saved parameters", "path", paramsPath)
	}
	return nil
}

func printSummary(w io.Writer, result *runner.Result, c config.Config) {
	fmt.Fprintf(w, "Job:          %s\n", result.JobID)
	fmt.Fprintf(w, "Method:       %s\n", result.Method)
	fmt.Fprintf(w, "Loops:        %d\n", result.Loops)
	fmt.Fprintf(w, "Renders:      %d\n", result.Renders)
	fmt.Fprintf(w, "Initial cost: %.6f\n", result.InitialCost)
	fmt.Fprintf(w, "Final cost:   %.6f\n", result.Cost)
	if result.InitialCost > 0 && result.Cost <= result.InitialCost {
		fmt.Fprintf(w, "Improvement:  %.2f%%\n", 100*(result.InitialCost-result.Cost)/result.InitialCost)
	}
	fmt.Fprintf(w, "Elapsed:      %s\n", result.Elapsed.Round(time.Millisecond))
	if c.CheckpointDir != "" {
		fmt.Fprintf(w, "Checkpoint:   %s\n", c.CheckpointDir)
	}
}
