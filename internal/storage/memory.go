package storage

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"stepwise/internal/logging"
	"stepwise/internal/recipe"
)

// Memory is an in-process Adapter. Payloads are kept encoded so reads go
// through the same decode and salvage path as Store.
type Memory struct {
	mu         sync.Mutex
	payload    []byte
	credential string
	saves      int
	saveErr    error
	maxPayload int64
	logger     *slog.Logger
}

// NewMemory returns an empty in-memory adapter. maxPayload <= 0 disables the
// size limit.
func NewMemory(maxPayload int64, logger *slog.Logger) *Memory {
	return &Memory{maxPayload: maxPayload, logger: logging.NewComponentLogger(logger, "storage")}
}

// GetProject decodes the last saved payload.
func (m *Memory) GetProject(context.Context) recipe.StoredProject {
	m.mu.Lock()
	payload := m.payload
	m.mu.Unlock()
	if len(payload) == 0 {
		return recipe.StoredProject{}
	}
	return decodeProject(payload, m.logger)
}

// SaveProject encodes and keeps the project.
func (m *Memory) SaveProject(_ context.Context, project recipe.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	payload, err := encodeProject(project, m.maxPayload)
	if err != nil {
		return err
	}
	m.payload = payload
	return nil
}

// ClearProject drops the saved payload.
func (m *Memory) ClearProject(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = nil
	return nil
}

// Credential returns the stored key.
func (m *Memory) Credential(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credential, nil
}

// SetCredential stores the key.
func (m *Memory) SetCredential(_ context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = strings.TrimSpace(value)
	return nil
}

// ClearCredential removes the key.
func (m *Memory) ClearCredential(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = ""
	return nil
}

// Seed replaces the stored payload with raw bytes, such as a record written
// by an older release.
func (m *Memory) Seed(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = append([]byte(nil), payload...)
}

// Payload returns a copy of the stored bytes.
func (m *Memory) Payload() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.payload...)
}

// Saves reports how many SaveProject calls were made.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FailSaves makes subsequent saves return err. Pass nil to recover.
func (m *Memory) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}
