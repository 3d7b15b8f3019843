package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type stubPipeline struct {
	mu          sync.Mutex
	fetchCalls  int
	fetchErr    error
	processErr  error
	persistErr  error
	pruneErr    error
	panicStage  string
	seenStates  []State
	stateSource *CycleRunner[[]string, []string]
}

func (s *stubPipeline) Kind() string { return "stub" }

func (s *stubPipeline) record() {
	if s.stateSource != nil {
		s.seenStates = append(s.seenStates, s.stateSource.State())
	}
}

func (s *stubPipeline) Fetch(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	s.fetchCalls++
	s.mu.Unlock()
	s.record()
	if s.panicStage == "fetch" {
		panic("fetch exploded")
	}
	return []string{"raw"}, s.fetchErr
}

func (s *stubPipeline) Process(ctx context.Context, raw []string) ([]string, error) {
	s.record()
	return raw, s.processErr
}

func (s *stubPipeline) Persist(ctx context.Context, processed []string) (int, error) {
	s.record()
	return len(processed), s.persistErr
}

func (s *stubPipeline) Prune(ctx context.Context) (int64, error) {
	s.record()
	return 0, s.pruneErr
}

func (s *stubPipeline) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

func newTestRunner(stub *stubPipeline, interval time.Duration) *CycleRunner[[]string, []string] {
	runner := NewCycleRunner[[]string, []string](trace.NewNoopTracerProvider().Tracer("test"), stub, interval)
	stub.stateSource = runner
	return runner
}

func TestCycleRunnerStateSequence(t *testing.T) {
	stub := &stubPipeline{}
	runner := newTestRunner(stub, time.Minute)

	runner.RunOnce(context.Background())

	expected := []State{StateFetching, StateProcessing, StatePersisting, StatePruning}
	if len(stub.seenStates) != len(expected) {
		t.Fatalf("expected %d stage states, got %v", len(expected), stub.seenStates)
	}
	for i, state := range expected {
		if stub.seenStates[i] != state {
			t.Fatalf("stage %d: expected %s, got %s", i, state, stub.seenStates[i])
		}
	}
	if runner.State() != StateIdle {
		t.Fatalf("expected idle after a clean cycle, got %s", runner.State())
	}
}

func TestCycleRunnerFailedStatePersists(t *testing.T) {
	stub := &stubPipeline{processErr: errors.New("classifier down")}
	runner := newTestRunner(stub, time.Minute)

	runner.RunOnce(context.Background())
	if runner.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", runner.State())
	}

	stub.processErr = nil
	runner.RunOnce(context.Background())
	if runner.State() != StateIdle {
		t.Fatalf("expected recovery on the next run, got %s", runner.State())
	}
}

func TestCycleRunnerRecoversFromPanic(t *testing.T) {
	stub := &stubPipeline{panicStage: "fetch"}
	runner := newTestRunner(stub, time.Minute)

	runner.RunOnce(context.Background())
	if runner.State() != StateFailed {
		t.Fatalf("panic should land in failed state, got %s", runner.State())
	}
}

func TestCycleRunnerPersistErrorFailsCycle(t *testing.T) {
	stub := &stubPipeline{persistErr: errors.New("pool closed")}
	runner := newTestRunner(stub, time.Minute)

	runner.RunOnce(context.Background())
	if runner.State() != StateFailed {
		t.Fatalf("persist errors must fail the cycle, got %s", runner.State())
	}
}

func TestCycleRunnerStartRunsImmediately(t *testing.T) {
	t.Parallel()

	stub := &stubPipeline{}
	runner := newTestRunner(stub, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go runner.Start(ctx)

	eventually(t, func() bool { return stub.fetches() > 0 })
	cancel()
}

func TestNewCycleRunnerDefaultInterval(t *testing.T) {
	runner := NewCycleRunner[[]string, []string](trace.NewNoopTracerProvider().Tracer("test"), &stubPipeline{}, 0)
	if runner.interval != 5*time.Minute {
		t.Fatalf("expected default 5m interval, got %v", runner.interval)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}
