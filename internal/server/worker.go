package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/facefit/internal/fit"
	"github.com/cwbudde/facefit/internal/runner"
)

// startJob launches the worker of a registered job
func (s *Server) startJob(id string, resume *resumePoint) {
	ctx, cancel := context.WithCancel(s.ctx)
	s.jobManager.setCancel(id, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.runJob(ctx, id, resume); err != nil {
			slog.Debug("Job worker finished with error", "job_id", id, "error", err)
		}
	}()
}

// resumePoint is where a resumed job continues
type resumePoint struct {
	params      fit.ParamVector
	loop        int
	initialCost float64
}

// runJob executes a job through the runner and mirrors its progress into
// the job manager and the SSE broadcaster
func (s *Server) runJob(ctx context.Context, id string, resume *resumePoint) error {
	job, ok := s.jobManager.GetJob(id)
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	s.setState(id, StateRunning, nil)

	cfg := s.base
	cfg.Fit = job.Config

	rj := runner.Job{
		ID:     id,
		Config: cfg,
		Store:  s.store,
		Logger: slog.Default(),
		OnProgress: func(p fit.Progress) {
			params := p.Params.Clone()
			s.jobManager.UpdateJob(id, func(j *Job) {
				j.Params = &params
				j.Cost = finiteCost(p.Cost)
				j.Loop = p.Loop
				j.Renders = p.Renders
			})
			if updated, ok := s.jobManager.GetJob(id); ok {
				s.jobManager.broadcaster.Broadcast(eventFor(updated))
			}
		},
	}
	if resume != nil {
		initialCost := resume.initialCost
		rj.Initial = &resume.params
		rj.StartLoop = resume.loop
		rj.InitialCost = &initialCost
	}

	result, err := runner.Run(ctx, rj)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.setState(id, StateCancelled, nil)
			slog.Info("Job cancelled", "job_id", id)
		} else {
			s.setState(id, StateFailed, err)
			slog.Error("Job failed", "job_id", id, "error", err)
		}
		return err
	}

	end := time.Now()
	s.jobManager.UpdateJob(id, func(j *Job) {
		j.State = StateCompleted
		j.Params = &result.Params
		j.Cost = finiteCost(result.Cost)
		j.InitialCost = finiteCost(result.InitialCost)
		j.Loop = result.Loops
		j.Renders = result.Renders
		j.EndTime = &end
	})
	s.broadcastState(id)
	return nil
}

// setState moves a job to state, recording err for failures
func (s *Server) setState(id string, state JobState, err error) {
	s.jobManager.UpdateJob(id, func(j *Job) {
		j.State = state
		if err != nil {
			j.Error = err.Error()
		}
		if state.Terminal() {
			end := time.Now()
			j.EndTime = &end
		}
	})
	s.broadcastState(id)
}

func (s *Server) broadcastState(id string) {
	if job, ok := s.jobManager.GetJob(id); ok {
		s.jobManager.broadcaster.Broadcast(eventFor(job))
	}
}
