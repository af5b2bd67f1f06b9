package store

import (
	"context"
	"errors"
	"strings"

	"stepwise/internal/ai"
	"stepwise/internal/frames"
	"stepwise/internal/logging"
	"stepwise/internal/recipe"
	"stepwise/internal/services"
)

// EngineRequest describes one analysis run.
type EngineRequest struct {
	Transcript      string
	Title           string
	ProjectType     recipe.ProjectType
	DurationSeconds float64
	// Video, when set, is attached to the extractor before screenshots are
	// captured.
	Video frames.Video
}

// EngineResult reports what a run did.
type EngineResult struct {
	// Dropped is set when another analysis was already running.
	Dropped bool
	Tasks   int
	Frames  frames.Result
}

// RunEngine analyses the source material, replaces the task list and, for
// video projects, captures screenshots. At most one analysis runs at a time;
// a request arriving while one is in progress is dropped. The processing
// flag is released before screenshots start so capture is governed by the
// extraction flag alone.
func (s *Store) RunEngine(ctx context.Context, req EngineRequest) (EngineResult, error) {
	if !s.beginProcessing() {
		s.logger.Info("analysis already running; request dropped")
		return EngineResult{Dropped: true}, nil
	}
	released := false
	release := func() {
		if !released {
			released = true
			s.endProcessing()
		}
	}
	defer release()

	ctx = services.WithStage(ctx, StatusAnalyzing)
	projectType := req.ProjectType
	if projectType == "" {
		projectType = s.current().ProjectType
	}
	if err := s.mutate(func(st *State) error {
		st.Transcript = req.Transcript
		st.ProjectType = projectType
		if title := strings.TrimSpace(req.Title); title != "" {
			st.ProjectTitle = title
		}
		return nil
	}); err != nil {
		return EngineResult{}, err
	}

	tasks, err := s.assistant.AnalyzeTranscript(ctx, ai.AnalysisRequest{
		Transcript:      req.Transcript,
		Title:           req.Title,
		ProjectType:     projectType,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		if ctx.Err() == nil {
			s.raise(err)
		}
		return EngineResult{}, err
	}
	if err := s.SetTasks(tasks); err != nil {
		return EngineResult{}, err
	}
	result := EngineResult{Tasks: len(tasks)}
	s.logger.Info("analysis complete", logging.Int("tasks", len(tasks)), logging.String("project_type", string(projectType)))

	release()
	if projectType != recipe.ProjectVideo || s.extractor == nil {
		return result, nil
	}
	if req.Video != nil {
		s.extractor.Attach(req.Video)
	}
	result.Frames, err = s.CaptureFrames(ctx)
	return result, err
}

func (s *Store) beginProcessing() bool {
	s.mu.Lock()
	if s.state.IsProcessing {
		s.mu.Unlock()
		return false
	}
	s.state.IsProcessing = true
	s.state.Status = StatusAnalyzing
	s.state.Notice = nil
	published := s.state
	s.mu.Unlock()
	s.notify(published)
	return true
}

func (s *Store) endProcessing() {
	s.setRuntime(func(st *State) {
		st.IsProcessing = false
		if st.Status == StatusAnalyzing {
			st.Status = StatusIdle
		}
	})
}

// CaptureFrames fills in missing screenshots from the attached video. It
// is safe to call again after an interruption; only tasks still lacking a
// screenshot are visited.
func (s *Store) CaptureFrames(ctx context.Context) (frames.Result, error) {
	if s.extractor == nil {
		s.raise(ErrNoExtractor)
		return frames.Result{}, ErrNoExtractor
	}
	result, err := s.extractor.Run(ctx, s)
	if err != nil {
		if errors.Is(err, frames.ErrSourceUnavailable) {
			s.raise(err)
		}
		return result, err
	}
	return result, nil
}

// AttachVideo hands a new video handle to the extractor, for example after
// the source was re-selected.
func (s *Store) AttachVideo(video frames.Video) {
	if s.extractor != nil {
		s.extractor.Attach(video)
	}
}

// ExpandTask asks the assistant to break a task into steps and appends
// them. Output that cannot be used leaves the task unchanged.
func (s *Store) ExpandTask(ctx context.Context, taskID string) ([]recipe.Step, error) {
	state := s.current()
	idx := state.taskIndex(taskID)
	if idx < 0 {
		return nil, notFound("task", taskID)
	}
	task := state.Tasks[idx]
	return s.expand(ctx, taskID, "", ai.SubStepRequest{TaskName: task.TaskName, Description: task.Description})
}

// ExpandStep asks the assistant to break a step into smaller steps and
// attaches them beneath it.
func (s *Store) ExpandStep(ctx context.Context, stepID string) ([]recipe.Step, error) {
	state := s.current()
	idx, step := recipe.FindTaskStep(state.Tasks, stepID)
	if idx < 0 {
		return nil, notFound("step", stepID)
	}
	task := state.Tasks[idx]
	return s.expand(ctx, task.ID, stepID, ai.SubStepRequest{
		TaskName:    task.TaskName,
		Description: task.Description,
		StepText:    step.Text,
	})
}

func (s *Store) expand(ctx context.Context, taskID, stepID string, req ai.SubStepRequest) ([]recipe.Step, error) {
	ctx = services.WithTaskID(services.WithStage(ctx, StatusExpanding), taskID)
	s.setRuntime(func(st *State) { st.Status = StatusExpanding })
	defer s.setRuntime(func(st *State) {
		if st.Status == StatusExpanding {
			st.Status = StatusIdle
		}
	})

	texts, err := s.assistant.GenerateSubSteps(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			s.raise(err)
		}
		return nil, err
	}
	return s.AttachSubSteps(taskID, stepID, texts)
}

// Scout asks for tutorial searches on topic and records them with the topic
// in the scout history.
func (s *Store) Scout(ctx context.Context, topic, platform string) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, invalid("scout", "topic is required")
	}
	ctx = services.WithStage(ctx, StatusScouting)
	s.setRuntime(func(st *State) { st.Status = StatusScouting })
	defer s.setRuntime(func(st *State) {
		if st.Status == StatusScouting {
			st.Status = StatusIdle
		}
	})

	queries, err := s.assistant.GenerateSearchQueries(ctx, ai.SearchRequest{Topic: topic, Platform: platform})
	if err != nil {
		if ctx.Err() == nil {
			s.raise(err)
		}
		return nil, err
	}
	if err := s.SetScout(topic, platform, queries); err != nil {
		return nil, err
	}
	return queries, nil
}
