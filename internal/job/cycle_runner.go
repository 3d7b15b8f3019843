// Package job drives the timer-based ingestion cycles. Each data kind
// (headlines, prices) gets its own CycleRunner on an independent interval, so
// a slow classifier never delays price ingestion and one kind's failure never
// crosses into the other.
package job

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// State is the scheduler state of one cycle runner.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateProcessing State = "processing"
	StatePersisting State = "persisting"
	StatePruning    State = "pruning"
	StateFailed     State = "failed"
)

// Pipeline is one data kind's staged cycle. R is the raw fetched batch and P
// the processed batch handed to persistence. Stage errors fail the cycle;
// per-record and per-ticker problems are the pipeline's to absorb and count.
type Pipeline[R, P any] interface {
	Kind() string
	Fetch(ctx context.Context) (R, error)
	Process(ctx context.Context, raw R) (P, error)
	Persist(ctx context.Context, processed P) (int, error)
	Prune(ctx context.Context) (int64, error)
}

// CycleRunner runs a pipeline at a fixed interval through the state sequence
// Idle, Fetching, Processing, Persisting, Pruning, Idle. Any stage error or
// panic moves the runner to Failed; the cycle is skipped and the next tick
// retries from Idle. The runner never crashes the process.
type CycleRunner[R, P any] struct {
	tracer   trace.Tracer
	pipeline Pipeline[R, P]
	interval time.Duration

	mu    sync.Mutex
	state State
}

func NewCycleRunner[R, P any](tracer trace.Tracer, pipeline Pipeline[R, P], interval time.Duration) *CycleRunner[R, P] {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CycleRunner[R, P]{
		tracer:   tracer,
		pipeline: pipeline,
		interval: interval,
		state:    StateIdle,
	}
}

// State reports the runner's current scheduler state.
func (r *CycleRunner[R, P]) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *CycleRunner[R, P]) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Start runs one cycle immediately, then one per interval tick. Blocks until
// ctx is cancelled.
func (r *CycleRunner[R, P]) Start(ctx context.Context) {
	log.Printf("%s cycle runner starting interval=%s", r.pipeline.Kind(), r.interval)

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s cycle runner stopped", r.pipeline.Kind())
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single cycle. Exported for on-demand runs and tests.
func (r *CycleRunner[R, P]) RunOnce(ctx context.Context) {
	_, span := r.tracer.Start(ctx, "cycle-runner.run-once")
	defer span.End()

	started := time.Now()
	if err := r.runStages(ctx); err != nil {
		// Failed holds until the next tick re-attempts from the top.
		r.setState(StateFailed)
		log.Printf("%s cycle failed after %s: %v", r.pipeline.Kind(), time.Since(started).Round(time.Millisecond), err)
		return
	}
	r.setState(StateIdle)
}

func (r *CycleRunner[R, P]) runStages(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("cycle panic: %v", recovered)
		}
	}()

	r.setState(StateFetching)
	raw, err := r.pipeline.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	r.setState(StateProcessing)
	processed, err := r.pipeline.Process(ctx, raw)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}

	r.setState(StatePersisting)
	if _, err := r.pipeline.Persist(ctx, processed); err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	r.setState(StatePruning)
	if _, err := r.pipeline.Prune(ctx); err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	return nil
}
