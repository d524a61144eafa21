package render

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/cwbudde/facefit/internal/fit"
)

type request struct {
	params fit.ParamVector
	done   fit.Completion
}

type result struct {
	req request
	obs *fit.Observation
	err error
}

// Loop adapts a synchronous Backend to the asynchronous fit.Renderer protocol.
// RequestImage only queues; Run renders queued requests on a pool of workers
// and invokes every completion on the goroutine that called Run, in the order
// renders finish.
type Loop struct {
	backend Backend
	workers int
	logger  *slog.Logger

	mu       sync.Mutex
	queue    []request
	rendered int
}

// NewLoop creates a loop over backend. workers <= 0 selects GOMAXPROCS.
func NewLoop(backend Backend, workers int, logger *slog.Logger) *Loop {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{backend: backend, workers: workers, logger: logger}
}

// RequestImage queues a render; done runs later inside Run
func (l *Loop) RequestImage(params fit.ParamVector, done fit.Completion) {
	l.mu.Lock()
	l.queue = append(l.queue, request{params: params, done: done})
	l.mu.Unlock()
}

// Pending returns the number of queued requests not yet dispatched
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Rendered returns the number of completed renders
func (l *Loop) Rendered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rendered
}

// Run processes requests until none is queued or in flight.
// It stops at the first render or completion error, or when ctx is done;
// requests still queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	jobs := make(chan request, l.workers)
	results := make(chan result)

	var wg sync.WaitGroup
	for w := 0; w < l.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				obs, err := l.backend.Render(runCtx, req.params)
				select {
				case results <- result{req: req, obs: obs, err: err}:
				case <-runCtx.Done():
					return
				}
			}
		}()
	}
	defer func() {
		cancel()
		close(jobs)
		wg.Wait()
	}()

	inFlight := 0
	for {
		l.mu.Lock()
		for len(l.queue) > 0 && inFlight < l.workers {
			jobs <- l.queue[0]
			l.queue = l.queue[1:]
			inFlight++
		}
		idle := inFlight == 0
		l.mu.Unlock()

		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			l.discard()
			return ctx.Err()
		case res := <-results:
			inFlight--
			if res.err != nil {
				l.discard()
				return fmt.Errorf("render failed: %w", res.err)
			}
			l.mu.Lock()
			l.rendered++
			l.mu.Unlock()
			if err := res.req.done(res.obs); err != nil {
				l.discard()
				return err
			}
		}
	}
}

func (l *Loop) discard() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) > 0 {
		l.logger.Debug("Discarding queued render requests", "count", len(l.queue))
	}
	l.queue = nil
}
