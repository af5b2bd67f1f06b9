package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stepwise/internal/ai"
	"stepwise/internal/frames"
	"stepwise/internal/logging"
	"stepwise/internal/recipe"
	"stepwise/internal/services"
	"stepwise/internal/storage"
)

var (
	// ErrLastProject is returned when deleting the only to-do project.
	ErrLastProject = errors.New("cannot delete the last project")
	// ErrNoExtractor is returned by CaptureFrames when no extractor is wired.
	ErrNoExtractor = errors.New("frame extraction is not configured")

	errUnchanged = errors.New("unchanged")
)

// Assistant is the AI capability the store drives.
type Assistant interface {
	AnalyzeTranscript(ctx context.Context, req ai.AnalysisRequest) ([]recipe.Task, error)
	GenerateSubSteps(ctx context.Context, req ai.SubStepRequest) ([]string, error)
	GenerateSearchQueries(ctx context.Context, req ai.SearchRequest) ([]string, error)
	SetAPIKey(key string)
}

// Options wires a Store.
type Options struct {
	Adapter           storage.Adapter
	Assistant         Assistant
	Extractor         *frames.Extractor
	Logger            *slog.Logger
	Now               func() time.Time
	ScoutHistoryLimit int
}

// Store owns the application state.
type Store struct {
	adapter    storage.Adapter
	assistant  Assistant
	extractor  *frames.Extractor
	logger     *slog.Logger
	now        func() time.Time
	scoutLimit int

	mu        sync.Mutex
	state     State
	hydrating bool

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

const defaultScoutHistoryLimit = 20

// New builds an unhydrated store holding default state.
func New(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	limit := opts.ScoutHistoryLimit
	if limit <= 0 {
		limit = defaultScoutHistoryLimit
	}
	return &Store{
		adapter:    opts.Adapter,
		assistant:  opts.Assistant,
		extractor:  opts.Extractor,
		logger:     logging.NewComponentLogger(opts.Logger, "store"),
		now:        now,
		scoutLimit: limit,
		state:      defaultState(now().UnixMilli()),
		subs:       make(map[int]func(State)),
	}
}

// Subscribe registers fn to run after every change. fn receives the
// published state and must not modify it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Snapshot returns the persisted envelope of the current state.
func (s *Store) Snapshot() recipe.Project {
	project, _ := s.snapshot()
	return project
}

func (s *Store) snapshot() (recipe.Project, uint64) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	return state.Project(), state.Revision
}

func (s *Store) current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// mutate applies fn to a working copy of the state. On success the copy is
// published with a new revision; on error nothing changes.
func (s *Store) mutate(fn func(*State) error) error {
	s.mu.Lock()
	work := s.state
	if err := fn(&work); err != nil {
		s.mu.Unlock()
		return err
	}
	work.Revision++
	work.UpdatedAt = s.now().UnixMilli()
	s.state = work
	s.mu.Unlock()
	s.notify(work)
	return nil
}

// setRuntime changes runtime-only fields without bumping the revision.
func (s *Store) setRuntime(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	published := s.state
	s.mu.Unlock()
	s.notify(published)
}

func (s *Store) notify(state State) {
	s.subsMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

// ClearNotice dismisses the current notice.
func (s *Store) ClearNotice() {
	s.setRuntime(func(st *State) { st.Notice = nil })
}

// raise records err as the current notice and returns it.
func (s *Store) raise(err error) *Notice {
	kind := services.Classify(err)
	switch {
	case errors.Is(err, frames.ErrSourceUnavailable), errors.Is(err, ErrNoExtractor):
		kind = KindSourceUnavailable
	case errors.Is(err, services.ErrValidation):
		kind = services.KindUnknown
	}
	return s.raiseKind(kind, err.Error())
}

func (s *Store) raiseKind(kind services.Kind, message string) *Notice {
	notice := &Notice{Kind: kind, Reaction: ReactionFor(kind), Message: message}
	s.setRuntime(func(st *State) {
		st.Notice = notice
		st.Status = StatusIdle
	})
	attrs := []logging.Attr{
		logging.String("kind", string(kind)),
		logging.String("reaction", string(notice.Reaction)),
		logging.String("message", message),
	}
	if notice.Reaction == ReactionHardError || notice.Reaction == ReactionExportBackup {
		logging.ErrorWithContext(s.logger, "operation failed", "store_notice", attrs...)
	} else {
		logging.WarnWithContext(s.logger, "operation needs attention", "store_notice", attrs...)
	}
	return notice
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %q: %w", what, id, services.ErrNotFound)
}

func invalid(op, message string) error {
	return services.Wrap(services.ErrValidation, "store", op, message, nil)
}
