package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cwbudde/facefit/internal/config"
	"github.com/cwbudde/facefit/internal/runner"
	"github.com/cwbudde/facefit/internal/store"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Continue a fitting job from its checkpoint",
	Long: `Resume a job from the checkpoint saved below --checkpoint-dir.

The job keeps its method, target and dimensions. --loops sets how many more
loops to run; by default the checkpointed loop budget is run again. When
--config is given, its fit section must describe the same job.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := store.NewFSStore(cfg.CheckpointDir)
		if err != nil {
			return fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		job, err := resumeJob(st, args[0], cfg, configPath != "", cmd.Flags().Changed("loops"))
		if err != nil {
			return err
		}
		return executeJob(ctx, job, cmd.OutOrStdout())
	},
}

func init() {
	resumeCmd.Flags().IntVar(&flagCfg.Fit.MaxLoops, "loops", config.Default().Fit.MaxLoops, "Additional loops to run")
	addRenderFlags(resumeCmd)
	addCheckpointDirFlag(resumeCmd)
	addOutputFlags(resumeCmd)
	rootCmd.AddCommand(resumeCmd)
}

// resumeJob builds a job continuing the checkpoint of jobID. The fit section
// comes from the checkpoint; base supplies rendering and storage settings.
func resumeJob(st store.Store, jobID string, base config.Config, checkFit, loopsSet bool) (runner.Job, error) {
	cp, err := st.LoadCheckpoint(jobID)
	if err != nil {
		return runner.Job{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if checkFit {
		if err := cp.IsCompatible(base.Fit); err != nil {
			return runner.Job{}, err
		}
	}

	c := base
	c.Fit = cp.Config
	if loopsSet {
		c.Fit.MaxLoops = base.Fit.MaxLoops
	}

	params := cp.Params.Clone()
	initialCost := cp.InitialCost
	logger.Info("Resuming job",
		"job_id", jobID,
		"loop", cp.Loop,
		"cost", cp.Cost,
		"method", c.Fit.Method,
	)
	return runner.Job{
		ID:          jobID,
		Config:      c,
		Initial:     &params,
		StartLoop:   cp.Loop,
		InitialCost: &initialCost,
		Logger:      logger,
	}, nil
}
