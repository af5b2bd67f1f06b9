package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const apiKeyName = "api_key"

// Credential returns the stored API key, or "" when none is stored.
func (s *Store) Credential(ctx context.Context) (string, error) {
	ctx = ensureContext(ctx)
	var value string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT value FROM credentials WHERE name = ?", apiKeyName).Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return value, nil
}

// SetCredential stores the API key. An empty value clears it.
func (s *Store) SetCredential(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return s.ClearCredential(ctx)
	}
	err := s.execWithRetry(ctx, `INSERT INTO credentials (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		apiKeyName, value, s.timestamp())
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// ClearCredential removes the stored API key.
func (s *Store) ClearCredential(ctx context.Context) error {
	if err := s.execWithRetry(ctx, "DELETE FROM credentials WHERE name = ?", apiKeyName); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}
