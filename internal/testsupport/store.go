package testsupport

import (
	"testing"

	"stepwise/internal/config"
	"stepwise/internal/logging"
	"stepwise/internal/storage"
)

// MustOpenStorage opens the profile database for tests and registers cleanup.
func MustOpenStorage(t testing.TB, cfg *config.Config) *storage.Store {
	t.Helper()

	store, err := storage.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
