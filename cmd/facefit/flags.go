package main

import (
	"github.com/spf13/cobra"

	"github.com/cwbudde/facefit/internal/config"
	"github.com/cwbudde/facefit/internal/fit"
)

// overrides copies one flag's value from the flag config into the effective config
var overrides = map[string]func(dst, src *config.Config){
	"target":           func(d, s *config.Config) { d.Fit.TargetPath = s.Fit.TargetPath },
	"model":            func(d, s *config.Config) { d.Fit.ModelPath = s.Fit.ModelPath },
	"method":           func(d, s *config.Config) { d.Fit.Method = s.Fit.Method },
	"dims":             func(d, s *config.Config) { d.Fit.Dimensions = s.Fit.Dimensions },
	"channel":          func(d, s *config.Config) { d.Fit.Channel = s.Fit.Channel },
	"loops":            func(d, s *config.Config) { d.Fit.MaxLoops = s.Fit.MaxLoops },
	"seed":             func(d, s *config.Config) { d.Fit.Seed = s.Fit.Seed },
	"dx":               func(d, s *config.Config) { d.Fit.Gradient.Dx = s.Fit.Gradient.Dx },
	"step":             func(d, s *config.Config) { d.Fit.Gradient.Step = s.Fit.Gradient.Step },
	"light-scale":      func(d, s *config.Config) { d.Fit.Gradient.LightScale = s.Fit.Gradient.LightScale },
	"steps":            func(d, s *config.Config) { d.Fit.Sampler.Steps = s.Fit.Sampler.Steps },
	"determined-loops": func(d, s *config.Config) { d.Fit.Sampler.DeterminedLoops = s.Fit.Sampler.DeterminedLoops },
	"steps-from-model": func(d, s *config.Config) { d.Fit.Sampler.StepsScale = s.Fit.Sampler.StepsScale },
	"iters":            func(d, s *config.Config) { d.Fit.Mayfly.Iters = s.Fit.Mayfly.Iters },
	"pop":              func(d, s *config.Config) { d.Fit.Mayfly.PopSize = s.Fit.Mayfly.PopSize },
	"converge":         enableConvergence,
	"patience":         func(d, s *config.Config) { d.Fit.Convergence.Patience = s.Fit.Convergence.Patience },
	"threshold":        func(d, s *config.Config) { d.Fit.Convergence.Threshold = s.Fit.Convergence.Threshold },
	"checkpoint-every": func(d, s *config.Config) { d.Fit.CheckpointInterval = s.Fit.CheckpointInterval },
	"backend":          func(d, s *config.Config) { d.Render.Backend = s.Render.Backend },
	"address":          func(d, s *config.Config) { d.Render.Address = s.Render.Address },
	"rows":             func(d, s *config.Config) { d.Render.Rows = s.Render.Rows },
	"cols":             func(d, s *config.Config) { d.Render.Cols = s.Render.Cols },
	"workers":          func(d, s *config.Config) { d.Render.Workers = s.Render.Workers },
	"resolution":       func(d, s *config.Config) { d.Render.ModelResolution = s.Render.ModelResolution },
	"checkpoint-dir":   func(d, s *config.Config) { d.CheckpointDir = s.CheckpointDir },
	"addr":             func(d, s *config.Config) { d.Server.Addr = s.Server.Addr },
}

// enableConvergence also fills patience and threshold defaults when the
// config left convergence unconfigured
func enableConvergence(d, s *config.Config) {
	d.Fit.Convergence.Enabled = s.Fit.Convergence.Enabled
	def := fit.DefaultConvergenceConfig()
	if d.Fit.Convergence.Patience == 0 {
		d.Fit.Convergence.Patience = def.Patience
	}
	if d.Fit.Convergence.Threshold == 0 {
		d.Fit.Convergence.Threshold = def.Threshold
	}
}

// applyOverrides copies every flag the user set from src into dst
func applyOverrides(cmd *cobra.Command, dst, src *config.Config) {
	for name, apply := range overrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			apply(dst, src)
		}
	}
}

// addFitFlags registers the flags describing a fitting job
func addFitFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	d := config.Default()
	f.StringVar(&flagCfg.Fit.TargetPath, "target", "", "Target image path (PNG or JPEG)")
	f.StringVar(&flagCfg.Fit.ModelPath, "model", "", "Face model JSON file (default: synthetic model)")
	f.StringVar(&flagCfg.Fit.Method, "method", d.Fit.Method, "Fitting method: gradient, sampler, mayfly")
	f.IntVar(&flagCfg.Fit.Dimensions, "dims", d.Fit.Dimensions, "Number of shape coefficients to fit")
	f.IntVar(&flagCfg.Fit.Channel, "channel", d.Fit.Channel, "Observation feature channel compared with the target")
	f.IntVar(&flagCfg.Fit.MaxLoops, "loops", d.Fit.MaxLoops, "Gradient updates or sampler passes")
	f.Int64Var(&flagCfg.Fit.Seed, "seed", d.Fit.Seed, "Random seed")
	f.Float64Var(&flagCfg.Fit.Gradient.Dx, "dx", d.Fit.Gradient.Dx, "Finite-difference perturbation")
	f.Float64Var(&flagCfg.Fit.Gradient.Step, "step", d.Fit.Gradient.Step, "Gradient step size")
	f.Float64Var(&flagCfg.Fit.Gradient.LightScale, "light-scale", d.Fit.Gradient.LightScale, "Extra scale of light updates")
	f.IntSliceVar(&flagCfg.Fit.Sampler.Steps, "steps", nil, "Sampler step count per coordinate (coefficients, ambient, light)")
	f.IntVar(&flagCfg.Fit.Sampler.DeterminedLoops, "determined-loops", d.Fit.Sampler.DeterminedLoops, "Leading sampler passes using argmin selection")
	f.Float64Var(&flagCfg.Fit.Sampler.StepsScale, "steps-from-model", 0, "Derive sampler steps from model deviations with this scale")
	f.IntVar(&flagCfg.Fit.Mayfly.Iters, "iters", d.Fit.Mayfly.Iters, "Mayfly iterations")
	f.IntVar(&flagCfg.Fit.Mayfly.PopSize, "pop", d.Fit.Mayfly.PopSize, "Mayfly population size")
	f.BoolVar(&flagCfg.Fit.Convergence.Enabled, "converge", false, "Stop early when the cost stops improving")
	f.IntVar(&flagCfg.Fit.Convergence.Patience, "patience", 3, "Loops without improvement before stopping")
	f.Float64Var(&flagCfg.Fit.Convergence.Threshold, "threshold", 0.001, "Relative improvement that counts as progress")
	f.IntVar(&flagCfg.Fit.CheckpointInterval, "checkpoint-every", 0, "Save a checkpoint every N loops (0 = only at the end)")
}

// addRenderFlags registers the flags selecting the render backend
func addRenderFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	d := config.Default()
	f.StringVar(&flagCfg.Render.Backend, "backend", d.Render.Backend, "Render backend: cpu, grpc")
	f.StringVar(&flagCfg.Render.Address, "address", "", "Render server address for the grpc backend")
	f.IntVar(&flagCfg.Render.Rows, "rows", d.Render.Rows, "Observation rows")
	f.IntVar(&flagCfg.Render.Cols, "cols", d.Render.Cols, "Observation columns")
	f.IntVar(&flagCfg.Render.Workers, "workers", 0, "Concurrent renders (0 = GOMAXPROCS)")
	f.IntVar(&flagCfg.Render.ModelResolution, "resolution", d.Render.ModelResolution, "Latitude bands of the synthetic model")
}

func addCheckpointDirFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagCfg.CheckpointDir, "checkpoint-dir", config.Default().CheckpointDir, "Checkpoint directory (empty disables checkpoints)")
}
