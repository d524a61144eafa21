// Package runner wires a fitting job together: model, target, render backend,
// event loop, fitter, checkpoints and artifacts.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/cwbudde/facefit/internal/config"
	"github.com/cwbudde/facefit/internal/face"
	"github.com/cwbudde/facefit/internal/fit"
	"github.com/cwbudde/facefit/internal/imageio"
	"github.com/cwbudde/facefit/internal/opt"
	"github.com/cwbudde/facefit/internal/render"
	"github.com/cwbudde/facefit/internal/store"
)

// Artifact names written next to a job's checkpoint
const (
	BestImage = "best.png"
	DiffImage = "diff.png"
)

// Job describes one fitting run
type Job struct {
	ID     string
	Config config.Config

	// Initial overrides the default starting face, e.g. when resuming
	Initial *fit.ParamVector

	// StartLoop is the number of loops completed by earlier runs of the same job
	StartLoop int

	// InitialCost carries the original starting cost across resumes; nil
	// measures it from the starting face
	InitialCost *float64

	// Store receives checkpoints, the cost trace and artifacts; optional
	Store store.Store

	// OnProgress is called on the render control thread once per loop
	OnProgress func(fit.Progress)

	Logger *slog.Logger
}

// Result summarizes a finished run
type Result struct {
	JobID       string
	Method      string
	Params      fit.ParamVector
	Cost        float64
	InitialCost float64
	Loops       int
	Renders     int
	Observation *fit.Observation
	Elapsed     time.Duration
}

// Run executes job until the fitter finishes, the context is cancelled or
// the renderer fails.
func Run(ctx context.Context, job Job) (*Result, error) {
	logger := job.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("job_id", job.ID)
	cfg := job.Config

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Fit.TargetPath == "" {
		return nil, fmt.Errorf("no target image given")
	}

	model, target, backend, cleanup, err := prepare(cfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	logger.Info("Starting job",
		"method", cfg.Fit.Method,
		"target", cfg.Fit.TargetPath,
		"dimensions", cfg.Fit.Dimensions,
		"backend", render.NormalizeBackend(cfg.Render.Backend),
		"start_loop", job.StartLoop,
	)

	r := &run{
		job:     job,
		cfg:     cfg,
		model:   model,
		target:  target,
		backend: backend,
		logger:  logger,
	}
	return r.execute(ctx)
}

// prepare loads the model and target and connects the render backend
func prepare(cfg config.Config) (*face.ModelData, *fit.Target, render.Backend, func(), error) {
	model, err := LoadModel(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	target, err := imageio.LoadTarget(cfg.Fit.TargetPath, cfg.Render.Rows, cfg.Render.Cols)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	backend, cleanup, err := render.NewBackend(render.BackendConfig{
		Name:    cfg.Render.Backend,
		Model:   model,
		Rows:    cfg.Render.Rows,
		Cols:    cfg.Render.Cols,
		Address: cfg.Render.Address,
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return model, target, backend, cleanup, nil
}

// LoadModel reads the configured model file or builds the synthetic model
func LoadModel(cfg config.Config) (*face.ModelData, error) {
	if cfg.Fit.ModelPath == "" {
		return face.SyntheticModel(cfg.Fit.Dimensions, cfg.Render.ModelResolution)
	}
	model, err := face.LoadModel(cfg.Fit.ModelPath)
	if err != nil {
		return nil, err
	}
	if cfg.Fit.Dimensions > model.Dimensions() {
		return nil, fmt.Errorf("model %s has %d components, %d requested",
			cfg.Fit.ModelPath, model.Dimensions(), cfg.Fit.Dimensions)
	}
	return model, nil
}

// SamplerSteps resolves the per-coordinate step counts of a sampler job.
// Explicit steps win; otherwise a positive StepsScale derives coefficient
// steps from the model's deviations.
func SamplerSteps(cfg config.Fit, model *face.ModelData) []int {
	if len(cfg.Sampler.Steps) > 0 || cfg.Sampler.StepsScale <= 0 || model == nil {
		return cfg.Sampler.Steps
	}
	steps := model.Multipliers(cfg.Sampler.StepsScale)
	if len(steps) > cfg.Dimensions {
		steps = steps[:cfg.Dimensions]
	}
	for i, s := range steps {
		steps[i] = max(s, 1)
	}
	return steps
}

// NewFitter builds the iterative fitter selected by cfg.Method
func NewFitter(cfg config.Fit, target *fit.Target, renderer fit.Renderer, model *face.ModelData, base fit.Options) (fit.Fitter, error) {
	base.Dimensions = cfg.Dimensions
	base.Channel = cfg.Channel

	switch cfg.Method {
	case fit.MethodGradient:
		return fit.NewGradientDescentFitter(target, renderer, fit.GradientOptions{
			Options:     base,
			Dx:          cfg.Gradient.Dx,
			Step:        cfg.Gradient.Step,
			MaxLoops:    cfg.MaxLoops,
			LightScale:  cfg.Gradient.LightScale,
			Convergence: cfg.Convergence,
		})
	case fit.MethodSampler:
		return fit.NewCoordinateSamplerFitter(target, renderer, fit.SamplerOptions{
			Options:         base,
			Steps:           SamplerSteps(cfg, model),
			MaxLoops:        cfg.MaxLoops,
			DeterminedLoops: cfg.Sampler.DeterminedLoops,
			Rand:            rand.New(rand.NewSource(cfg.Seed)),
			Convergence:     cfg.Convergence,
		})
	default:
		return nil, fmt.Errorf("method %q is not an iterative fitter", cfg.Method)
	}
}

type run struct {
	job     Job
	cfg     config.Config
	model   *face.ModelData
	target  *fit.Target
	backend render.Backend
	logger  *slog.Logger

	trace *store.TraceWriter
	last  fit.Progress
	seen  bool
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	start := time.Now()

	if r.job.Store != nil {
		tw, err := r.job.Store.OpenTrace(r.job.ID, r.job.StartLoop > 0)
		if err != nil {
			return nil, err
		}
		r.trace = tw
		defer func() {
			if err := tw.Close(); err != nil {
				r.logger.Warn("Failed to close trace", "error", err)
			}
		}()
	}

	var (
		params      fit.ParamVector
		initialCost float64
		loops       int
		renders     int
		err         error
	)
	if r.cfg.Fit.Method == fit.MethodGlobal {
		params, initialCost, renders, err = r.global(ctx)
		loops = r.job.StartLoop + 1
	} else {
		params, initialCost, loops, renders, err = r.iterative(ctx)
	}
	if err != nil {
		// keep what the fit reached so a resume does not start over
		if r.seen && errors.Is(err, context.Canceled) {
			r.checkpoint(r.last.Params, r.last.Cost, initialCost, r.job.StartLoop+r.last.Loop)
		}
		return nil, err
	}
	if r.job.InitialCost != nil {
		initialCost = *r.job.InitialCost
	}

	obs, err := r.backend.Render(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to render result: %w", err)
	}
	cost := r.score(obs)

	r.checkpoint(params, cost, initialCost, loops)
	r.saveArtifacts(obs)

	elapsed := time.Since(start)
	r.logger.Info("Job completed",
		"elapsed", elapsed,
		"initial_cost", initialCost,
		"cost", cost,
		"loops", loops,
		"renders", renders,
	)
	return &Result{
		JobID:       r.job.ID,
		Method:      r.cfg.Fit.Method,
		Params:      params,
		Cost:        cost,
		InitialCost: initialCost,
		Loops:       loops,
		Renders:     renders,
		Observation: obs,
		Elapsed:     elapsed,
	}, nil
}

func (r *run) iterative(ctx context.Context) (fit.ParamVector, float64, int, int, error) {
	initial := fit.DefaultParamVector(r.cfg.Fit.Dimensions)
	if r.job.Initial != nil {
		initial = r.job.Initial.Conform(r.cfg.Fit.Dimensions)
	}
	obs, err := r.backend.Render(ctx, initial)
	if err != nil {
		return fit.ParamVector{}, 0, 0, 0, fmt.Errorf("failed to render initial face: %w", err)
	}
	initialCost := r.score(obs)

	loop := render.NewLoop(r.backend, r.cfg.Render.Workers, r.logger)
	fitter, err := NewFitter(r.cfg.Fit, r.target, loop, r.model, fit.Options{
		Initial:    &initial,
		OnProgress: r.progress(initialCost),
		Logger:     r.logger,
	})
	if err != nil {
		return fit.ParamVector{}, 0, 0, 0, err
	}

	params, err := fit.Run(ctx, fitter, loop)
	if err != nil {
		return fit.ParamVector{}, initialCost, 0, loop.Rendered(), err
	}

	loops := r.job.StartLoop
	if r.seen {
		loops += r.last.Loop
	}
	return params, initialCost, loops, loop.Rendered() + 1, nil
}

func (r *run) global(ctx context.Context) (fit.ParamVector, float64, int, error) {
	optimizer := opt.NewMayfly(r.cfg.Fit.Mayfly.Iters, r.cfg.Fit.Mayfly.PopSize, r.cfg.Fit.Seed)
	result, err := fit.OptimizeGlobal(ctx, r.backend.Render, r.target, optimizer, fit.GlobalOptions{
		Dimensions: r.cfg.Fit.Dimensions,
		Channel:    r.cfg.Fit.Channel,
		Logger:     r.logger,
	})
	if err != nil {
		return fit.ParamVector{}, 0, 0, err
	}
	return result.BestParams, result.InitialCost, result.Evaluations, nil
}

// progress chains trace, periodic checkpoints and the caller's hook
func (r *run) progress(initialCost float64) func(fit.Progress) {
	interval := r.cfg.Fit.CheckpointInterval
	return func(p fit.Progress) {
		r.last = p
		r.seen = true
		total := r.job.StartLoop + p.Loop

		// a resumed gradient fit reports its starting face again as loop 0
		if r.trace != nil && (p.Loop > 0 || r.job.StartLoop == 0) {
			entry := store.NewTraceEntry(p, false)
			entry.Loop = total
			if err := r.trace.Write(entry); err != nil {
				r.logger.Warn("Failed to write trace entry", "error", err)
			}
		}
		if interval > 0 && p.Loop > 0 && p.Loop%interval == 0 {
			r.checkpoint(p.Params, p.Cost, initialCost, total)
		}
		if r.job.OnProgress != nil {
			p.Loop = total
			r.job.OnProgress(p)
		}
	}
}

func (r *run) score(obs *fit.Observation) float64 {
	cost, err := fit.MaskedMSE(obs, r.target, r.cfg.Fit.Channel)
	if err != nil {
		r.logger.Warn("Observation cannot be scored", "error", err)
		return math.Inf(1)
	}
	return cost
}

func (r *run) checkpoint(params fit.ParamVector, cost, initialCost float64, loop int) {
	if r.job.Store == nil {
		return
	}
	if r.job.InitialCost != nil {
		initialCost = *r.job.InitialCost
	}
	cp := store.NewCheckpoint(r.job.ID, params, cost, initialCost, loop, r.cfg.Fit)
	if err := r.job.Store.SaveCheckpoint(r.job.ID, cp); err != nil {
		r.logger.Warn("Failed to save checkpoint", "loop", loop, "error", err)
		return
	}
	if r.trace != nil {
		if err := r.trace.Flush(); err != nil {
			r.logger.Warn("Failed to flush trace", "error", err)
		}
	}
	r.logger.Info("Checkpoint saved", "loop", loop, "cost", cost)
}

func (r *run) saveArtifacts(obs *fit.Observation) {
	if r.job.Store == nil {
		return
	}
	channel := r.cfg.Fit.Channel
	best, err := r.job.Store.ArtifactPath(r.job.ID, BestImage)
	if err == nil {
		err = imageio.SaveObservation(best, obs, channel)
	}
	if err != nil {
		r.logger.Warn("Failed to save best image", "error", err)
	}
	diff, err := r.job.Store.ArtifactPath(r.job.ID, DiffImage)
	if err == nil {
		err = imageio.SaveDiff(diff, obs, r.target, channel)
	}
	if err != nil {
		r.logger.Warn("Failed to save diff image", "error", err)
	}
}
