package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"stepwise/internal/logging"
	"stepwise/internal/recipe"
)

const projectKey = "current"

// GetProject loads the stored envelope. It never fails: any read or decode
// problem is logged and an empty or salvaged record is returned.
func (s *Store) GetProject(ctx context.Context) recipe.StoredProject {
	ctx = ensureContext(ctx)
	var payload string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT payload FROM project WHERE key = ?", projectKey).Scan(&payload)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return recipe.StoredProject{}
	}
	if err != nil {
		s.logger.Warn("project read failed; starting empty",
			logging.Error(err),
			logging.String(logging.FieldEventType, "project_read_failed"),
			logging.String(logging.FieldImpact, "previous project not loaded"),
		)
		return recipe.StoredProject{}
	}
	return decodeProject([]byte(payload), s.logger)
}

// SaveProject writes the full envelope, replacing the previous record.
func (s *Store) SaveProject(ctx context.Context, project recipe.Project) error {
	payload, err := encodeProject(project, s.maxPayload)
	if err != nil {
		return err
	}
	err = s.execWithRetry(ctx, `INSERT INTO project (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		projectKey, string(payload), s.timestamp())
	if err != nil {
		if isSQLiteFull(err) {
			return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
		}
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// ClearProject removes the stored envelope. The credential is untouched.
func (s *Store) ClearProject(ctx context.Context) error {
	if err := s.execWithRetry(ctx, "DELETE FROM project WHERE key = ?", projectKey); err != nil {
		return fmt.Errorf("clear project: %w", err)
	}
	return nil
}

func encodeProject(project recipe.Project, maxPayload int64) ([]byte, error) {
	if project.Tasks == nil {
		project.Tasks = []recipe.Task{}
	}
	if project.TodoProjects == nil {
		project.TodoProjects = []recipe.TodoProject{}
	}
	payload, err := json.Marshal(project)
	if err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	if maxPayload > 0 && int64(len(payload)) > maxPayload {
		return nil, fmt.Errorf("%w: payload is %d bytes, limit %d", ErrQuotaExceeded, len(payload), maxPayload)
	}
	return payload, nil
}

// decodeProject decodes a stored envelope. When the record as a whole does
// not decode, each top-level field is decoded on its own and tasks are kept
// one by one, so a single damaged entry does not discard the project.
func decodeProject(payload []byte, logger *slog.Logger) recipe.StoredProject {
	var project recipe.StoredProject
	err := json.Unmarshal(payload, &project)
	if err == nil {
		return project
	}

	var fields map[string]json.RawMessage
	if fieldErr := json.Unmarshal(payload, &fields); fieldErr != nil {
		logger.Warn("project record unreadable; starting empty",
			logging.Error(fieldErr),
			logging.String(logging.FieldEventType, "project_decode_failed"),
			logging.String(logging.FieldImpact, "previous project discarded"),
		)
		return recipe.StoredProject{}
	}

	var salvaged recipe.StoredProject
	var dropped []string
	for key, raw := range fields {
		if key == "tasks" {
			tasks, lost := salvageTasks(raw)
			salvaged.Tasks = tasks
			if lost > 0 {
				dropped = append(dropped, fmt.Sprintf("tasks[%d]", lost))
			}
			continue
		}
		single, marshalErr := json.Marshal(map[string]json.RawMessage{key: raw})
		if marshalErr != nil {
			dropped = append(dropped, key)
			continue
		}
		candidate := salvaged
		if json.Unmarshal(single, &candidate) != nil {
			dropped = append(dropped, key)
			continue
		}
		salvaged = candidate
	}
	logger.Warn("project record salvaged",
		logging.Error(err),
		logging.Any("dropped", dropped),
		logging.Int("tasks_kept", len(salvaged.Tasks)),
		logging.String(logging.FieldEventType, "project_salvaged"),
		logging.String(logging.FieldErrorHint, "export a backup if tasks are missing"),
	)
	return salvaged
}

func salvageTasks(raw json.RawMessage) ([]recipe.StoredTask, int) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, 1
	}
	tasks := make([]recipe.StoredTask, 0, len(items))
	lost := 0
	for _, item := range items {
		var task recipe.StoredTask
		if err := json.Unmarshal(item, &task); err != nil {
			lost++
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, lost
}
