package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"stepwise/internal/ai"
	"stepwise/internal/frames"
	"stepwise/internal/recipe"
	"stepwise/internal/schema"
	"stepwise/internal/services"
	"stepwise/internal/testsupport"
)

func TestRunEngineEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	f.assistant.tasks = []recipe.Task{
		{TaskName: "plate", TimestampSeconds: 40},
		{TaskName: "chop", TimestampSeconds: 10},
	}
	p := startPersister(t, f, &manualClock{})

	var mu sync.Mutex
	overlap := false
	var statuses []string
	f.store.Subscribe(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		if st.IsProcessing && st.IsExtracting {
			overlap = true
		}
		if len(statuses) == 0 || statuses[len(statuses)-1] != st.Status {
			statuses = append(statuses, st.Status)
		}
	})

	video := testsupport.NewFakeVideo()
	result, err := f.store.RunEngine(context.Background(), EngineRequest{
		Transcript:      "chop the onions, then plate",
		Title:           "Onion soup",
		DurationSeconds: 60,
		Video:           video,
	})
	if err != nil {
		t.Fatalf("RunEngine: %v", err)
	}
	if result.Dropped || result.Tasks != 2 || result.Frames.Captured != 2 {
		t.Fatalf("result = %+v", result)
	}

	state := f.store.State()
	if got := taskNames(state.Tasks); !slices.Equal(got, []string{"chop", "plate"}) {
		t.Fatalf("tasks = %v", got)
	}
	for _, task := range state.Tasks {
		if !strings.HasPrefix(task.ScreenshotBase64, frames.DataURLPrefix) {
			t.Fatalf("task %s has no screenshot", task.TaskName)
		}
	}
	if !slices.Equal(video.Seeks(), []float64{10.5, 40.5}) {
		t.Fatalf("seeks = %v", video.Seeks())
	}
	if state.IsProcessing || state.IsExtracting || state.Status != StatusIdle {
		t.Fatalf("flags left set: %+v", state)
	}
	if state.ProjectTitle != "Onion soup" || state.Transcript == "" {
		t.Fatalf("source fields = %q %q", state.ProjectTitle, state.Transcript)
	}

	mu.Lock()
	if overlap {
		t.Fatal("processing must be released before capture starts")
	}
	if !slices.Contains(statuses, StatusAnalyzing) || !slices.Contains(statuses, StatusCapturing) {
		t.Fatalf("statuses = %v", statuses)
	}
	mu.Unlock()

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	reloaded := newFixtureWith(t, f.memory)
	reloaded.hydrate(t)
	got := reloaded.store.State().Tasks
	if len(got) != 2 || got[0].ScreenshotBase64 != state.Tasks[0].ScreenshotBase64 {
		t.Fatal("screenshots must survive a reload")
	}
}

func TestRunEngineRepeatedIDsStayDistinct(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	f.assistant.tasks = []recipe.Task{
		{ID: "1", TaskName: "A", TimestampSeconds: 1, SubSteps: []recipe.Step{{ID: "sub-1", Text: "x"}}},
		{ID: "1", TaskName: "B", TimestampSeconds: 2, SubSteps: []recipe.Step{{ID: "sub-1", Text: "y"}}},
	}
	result, err := f.store.RunEngine(context.Background(), EngineRequest{
		Transcript:  "a then b",
		ProjectType: recipe.ProjectVideo,
		Video:       testsupport.NewFakeVideo(),
	})
	if err != nil {
		t.Fatalf("RunEngine: %v", err)
	}
	if result.Frames.Captured != 2 {
		t.Fatalf("result = %+v", result)
	}
	tasks := f.store.State().Tasks
	if tasks[0].ID == tasks[1].ID || tasks[0].SubSteps[0].ID == tasks[1].SubSteps[0].ID {
		t.Fatalf("ids repeated: %+v", tasks)
	}
	for _, task := range tasks {
		if task.ScreenshotBase64 == "" {
			t.Fatalf("task %s has no screenshot", task.TaskName)
		}
	}
	if _, err := f.store.ToggleStep(tasks[1].SubSteps[0].ID); err != nil {
		t.Fatalf("ToggleStep: %v", err)
	}
	tasks = f.store.State().Tasks
	if tasks[0].SubSteps[0].IsCompleted || !tasks[1].SubSteps[0].IsCompleted {
		t.Fatal("toggle must only touch the addressed step")
	}
}

func TestRunEngineDropsConcurrentRequest(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	f.assistant.tasks = []recipe.Task{{TaskName: "only", TimestampSeconds: 1}}
	f.assistant.gate = make(chan struct{})
	f.assistant.entered = make(chan struct{}, 1)

	type outcome struct {
		result EngineResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := f.store.RunEngine(context.Background(), EngineRequest{Transcript: "first", ProjectType: recipe.ProjectText})
		done <- outcome{result, err}
	}()
	<-f.assistant.entered

	second, err := f.store.RunEngine(context.Background(), EngineRequest{Transcript: "second", ProjectType: recipe.ProjectText})
	if err != nil || !second.Dropped {
		t.Fatalf("second run = %+v, %v", second, err)
	}
	close(f.assistant.gate)

	select {
	case first := <-done:
		if first.err != nil || first.result.Tasks != 1 {
			t.Fatalf("first run = %+v, %v", first.result, first.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not finish")
	}
	if f.assistant.Analyses() != 1 {
		t.Fatalf("analyses = %d", f.assistant.Analyses())
	}
	if state := f.store.State(); state.Transcript != "first" || state.IsProcessing {
		t.Fatalf("state = %q processing=%v", state.Transcript, state.IsProcessing)
	}
}

func TestRunEngineFailureRaisesNotice(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Reaction
	}{
		{"quota", &ai.StatusError{StatusCode: 429, Body: "Quota exceeded for model"}, ReactionNewCredential},
		{"auth", errors.New("API key not valid"), ReactionNewCredential},
		{"overloaded", &ai.StatusError{StatusCode: 503, Body: "model overloaded"}, ReactionTransientWarning},
		{"timeout", fmt.Errorf("analyze: %w", ai.ErrTimedOut), ReactionTransientWarning},
		{"safety", errors.New("response blocked by safety filters"), ReactionHardError},
		{"parse", &schema.ParseError{Reason: schema.ErrMalformed, Index: -1}, ReactionHardError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.hydrate(t)
			mustTask(t, f.store, "kept", 3)
			f.assistant.analyzeErr = tc.err

			_, err := f.store.RunEngine(context.Background(), EngineRequest{Transcript: "x", ProjectType: recipe.ProjectText})
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v", err)
			}
			state := f.store.State()
			if state.Notice == nil || state.Notice.Reaction != tc.want {
				t.Fatalf("notice = %+v, want %s", state.Notice, tc.want)
			}
			if state.IsProcessing || state.Status != StatusIdle {
				t.Fatal("a failed run must release the processing flag")
			}
			if got := taskNames(state.Tasks); !slices.Equal(got, []string{"kept"}) {
				t.Fatalf("a failed run must keep the old tasks, got %v", got)
			}
		})
	}
}

func TestRunEngineCancelledRaisesNothing(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	f.assistant.gate = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.store.RunEngine(ctx, EngineRequest{Transcript: "x", ProjectType: recipe.ProjectText})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if f.store.State().Notice != nil {
		t.Fatal("cancellation is not a failure the user has to act on")
	}
}

func TestCaptureFramesResumesAfterSourceLoss(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	if err := f.store.SetTasks([]recipe.Task{
		{TaskName: "a", TimestampSeconds: 1},
		{TaskName: "b", TimestampSeconds: 2},
		{TaskName: "c", TimestampSeconds: 3},
	}); err != nil {
		t.Fatalf("SetTasks: %v", err)
	}

	video := testsupport.NewFakeVideo()
	video.OnFrame(func(n int) {
		if n == 1 {
			video.SetReady(false)
		}
	})
	f.store.AttachVideo(video)
	_, err := f.store.CaptureFrames(context.Background())
	if !errors.Is(err, frames.ErrSourceUnavailable) {
		t.Fatalf("err = %v", err)
	}
	state := f.store.State()
	if state.Notice == nil || state.Notice.Reaction != ReactionReselectSource {
		t.Fatalf("notice = %+v", state.Notice)
	}
	if state.IsExtracting {
		t.Fatal("extraction flag left set")
	}
	if len(f.store.PendingScreenshots()) != 2 {
		t.Fatalf("pending = %+v", f.store.PendingScreenshots())
	}

	fresh := testsupport.NewFakeVideo()
	f.store.AttachVideo(fresh)
	result, err := f.store.CaptureFrames(context.Background())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if result.Captured != 2 || len(f.store.PendingScreenshots()) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if !slices.Equal(fresh.Seeks(), []float64{2.5, 3.5}) {
		t.Fatalf("resume must only visit missing tasks, seeks = %v", fresh.Seeks())
	}
}

func TestCaptureFramesWithoutExtractor(t *testing.T) {
	s := New(Options{})
	if _, err := s.CaptureFrames(context.Background()); !errors.Is(err, ErrNoExtractor) {
		t.Fatalf("err = %v", err)
	}
	if n := s.State().Notice; n == nil || n.Reaction != ReactionReselectSource {
		t.Fatalf("notice = %+v", n)
	}
}

func TestExpandStepAttachesChildren(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	task := mustTask(t, f.store, "bread", 0)
	step, _ := f.store.AddStep(task.ID, "", "knead")
	f.assistant.subSteps = []string{"flour hands", "push", "fold"}

	added, err := f.store.ExpandStep(context.Background(), step.ID)
	if err != nil {
		t.Fatalf("ExpandStep: %v", err)
	}
	if len(added) != 3 {
		t.Fatalf("added = %+v", added)
	}
	_, knead := recipe.FindTaskStep(f.store.State().Tasks, step.ID)
	if len(knead.SubSteps) != 3 || knead.SubSteps[2].Text != "fold" {
		t.Fatalf("children = %+v", knead.SubSteps)
	}
	req := f.assistant.requests[0]
	if req.TaskName != "bread" || req.StepText != "knead" {
		t.Fatalf("request = %+v", req)
	}

	f.assistant.subSteps = nil
	added, err = f.store.ExpandTask(context.Background(), task.ID)
	if err != nil || len(added) != 0 {
		t.Fatalf("empty expansion = %+v, %v", added, err)
	}
	if len(f.store.State().Tasks[0].SubSteps) != 1 {
		t.Fatal("unusable output must leave the task unchanged")
	}
	if _, err := f.store.ExpandStep(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing step: %v", err)
	}
}

func TestExpandFailureRaisesNotice(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	task := mustTask(t, f.store, "bread", 0)
	f.assistant.subErr = &ai.StatusError{StatusCode: 503, Body: "unavailable"}
	if _, err := f.store.ExpandTask(context.Background(), task.ID); err == nil {
		t.Fatal("expected error")
	}
	state := f.store.State()
	if state.Notice == nil || state.Notice.Reaction != ReactionTransientWarning || state.Status != StatusIdle {
		t.Fatalf("state = %+v", state.Notice)
	}
}

func TestScoutRecordsHistory(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	f.assistant.queries = []string{"sourdough starter guide", "sourdough shaping"}
	got, err := f.store.Scout(context.Background(), " sourdough ", "youtube")
	if err != nil {
		t.Fatalf("Scout: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("queries = %v", got)
	}
	state := f.store.State()
	if !slices.Equal(state.ScoutHistory, []string{"sourdough"}) || state.ScoutPlatform != "youtube" {
		t.Fatalf("history = %v platform = %q", state.ScoutHistory, state.ScoutPlatform)
	}
	if _, err := f.store.Scout(context.Background(), "  ", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("blank topic: %v", err)
	}
}
