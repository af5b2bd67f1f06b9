package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stepwise/internal/logging"
	"stepwise/internal/recipe"
)

// ExportTasks encodes the task list as an indented JSON array.
func (s *Store) ExportTasks() ([]byte, error) {
	tasks := s.current().Tasks
	if tasks == nil {
		tasks = []recipe.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export tasks: %w", err)
	}
	return data, nil
}

// ImportTasks replaces the task list with a backup. The backup must be a
// JSON array whose first element has an id and a task_name. Legacy string
// children are migrated on the way in.
func (s *Store) ImportTasks(data []byte) error {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return invalid("import tasks", "backup must be a JSON array of tasks")
	}
	if len(raw) == 0 {
		return invalid("import tasks", "backup contains no tasks")
	}
	for _, field := range []string{"id", "task_name"} {
		if _, ok := raw[0][field]; !ok {
			return invalid("import tasks", fmt.Sprintf("first task is missing %q", field))
		}
	}
	var stored []recipe.StoredTask
	if err := json.Unmarshal(data, &stored); err != nil {
		return invalid("import tasks", err.Error())
	}
	tasks := recipe.NormalizeTasks(stored)
	if err := s.SetTasks(tasks); err != nil {
		return err
	}
	s.logger.Info("tasks imported", logging.Int("tasks", len(tasks)))
	return nil
}

// ResetProject clears the stored project and returns to default state. The
// credential is kept.
func (s *Store) ResetProject(ctx context.Context) error {
	if s.adapter != nil {
		if err := s.adapter.ClearProject(ctx); err != nil {
			return fmt.Errorf("reset project: %w", err)
		}
	}
	err := s.mutate(func(st *State) error {
		fresh := defaultState(s.now().UnixMilli())
		fresh.Hydrated = st.Hydrated
		fresh.APIKey = st.APIKey
		fresh.IsProcessing = st.IsProcessing
		fresh.IsExtracting = st.IsExtracting
		fresh.Status = st.Status
		fresh.Revision = st.Revision
		*st = fresh
		return nil
	})
	if err == nil {
		s.logger.Info("project reset")
	}
	return err
}

// Logout resets the project and forgets the credential.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.ResetProject(ctx); err != nil {
		return err
	}
	if s.adapter != nil {
		if err := s.adapter.ClearCredential(ctx); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
	}
	if s.assistant != nil {
		s.assistant.SetAPIKey("")
	}
	s.setRuntime(func(st *State) { st.APIKey = "" })
	s.logger.Info("logged out")
	return nil
}

// SetAPIKey stores a new credential, hands it to the assistant and clears
// any notice asking for one.
func (s *Store) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if s.adapter != nil {
		if err := s.adapter.SetCredential(ctx, key); err != nil {
			return fmt.Errorf("save credential: %w", err)
		}
	}
	if s.assistant != nil {
		s.assistant.SetAPIKey(key)
	}
	s.setRuntime(func(st *State) {
		st.APIKey = key
		if st.Notice != nil && st.Notice.Reaction == ReactionNewCredential {
			st.Notice = nil
		}
	})
	return nil
}
