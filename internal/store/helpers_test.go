package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"stepwise/internal/ai"
	"stepwise/internal/frames"
	"stepwise/internal/logging"
	"stepwise/internal/recipe"
	"stepwise/internal/storage"
)

type fakeAssistant struct {
	mu         sync.Mutex
	tasks      []recipe.Task
	analyzeErr error
	subSteps   []string
	subErr     error
	queries    []string
	queryErr   error
	key        string
	analyses   int
	requests   []ai.SubStepRequest
	gate       chan struct{}
	entered    chan struct{}
}

func (f *fakeAssistant) AnalyzeTranscript(ctx context.Context, _ ai.AnalysisRequest) ([]recipe.Task, error) {
	f.mu.Lock()
	f.analyses++
	gate, entered := f.gate, f.entered
	tasks, err := recipe.CloneTasks(f.tasks), f.analyzeErr
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return tasks, err
}

func (f *fakeAssistant) GenerateSubSteps(_ context.Context, req ai.SubStepRequest) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return append([]string(nil), f.subSteps...), f.subErr
}

func (f *fakeAssistant) GenerateSearchQueries(context.Context, ai.SearchRequest) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...), f.queryErr
}

func (f *fakeAssistant) SetAPIKey(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.key = key
}

func (f *fakeAssistant) Key() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key
}

func (f *fakeAssistant) Analyses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyses
}

type manualTimer struct {
	fn      func()
	stopped bool
	fired   bool
}

type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualClock) AfterFunc(_ time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{fn: fn}
	m.timers = append(m.timers, t)
	return &manualHandle{clock: m, timer: t}
}

type manualHandle struct {
	clock *manualClock
	timer *manualTimer
}

func (h *manualHandle) Stop() bool {
	h.clock.mu.Lock()
	defer h.clock.mu.Unlock()
	active := !h.timer.stopped && !h.timer.fired
	h.timer.stopped = true
	return active
}

// Armed counts timers that have neither fired nor been stopped.
func (m *manualClock) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Fire runs every armed timer.
func (m *manualClock) Fire() int {
	m.mu.Lock()
	var due []func()
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t.fn)
		}
	}
	m.mu.Unlock()
	for _, fn := range due {
		fn()
	}
	return len(due)
}

type fixture struct {
	store     *Store
	memory    *storage.Memory
	assistant *fakeAssistant
	extractor *frames.Extractor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	memory := storage.NewMemory(0, logging.NewNop())
	return newFixtureWith(t, memory)
}

func newFixtureWith(t *testing.T, memory *storage.Memory) *fixture {
	t.Helper()
	assistant := &fakeAssistant{}
	extractor := frames.NewExtractor(frames.Options{Logger: logging.NewNop()})
	s := New(Options{
		Adapter:   memory,
		Assistant: assistant,
		Extractor: extractor,
		Logger:    logging.NewNop(),
	})
	return &fixture{store: s, memory: memory, assistant: assistant, extractor: extractor}
}

func (f *fixture) hydrate(t *testing.T) {
	t.Helper()
	if err := f.store.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
}

func mustTask(t *testing.T, s *Store, name string, ts float64) recipe.Task {
	t.Helper()
	task, err := s.AddTask(name, "", ts)
	if err != nil {
		t.Fatalf("AddTask(%s): %v", name, err)
	}
	return task
}

func taskNames(tasks []recipe.Task) []string {
	names := make([]string, len(tasks))
	for i, task := range tasks {
		names[i] = task.TaskName
	}
	return names
}
