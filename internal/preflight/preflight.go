package preflight

import (
	"context"

	"stepwise/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the directory checks and, when a validator is given, the
// AI credential check.
func RunAll(ctx context.Context, cfg *config.Config, validator KeyValidator) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Data directory", cfg.Paths.DataDir)}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if validator != nil {
		results = append(results, CheckAI(ctx, validator))
	}
	return results
}
