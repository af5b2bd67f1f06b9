package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"stepwise/internal/ai"
	"stepwise/internal/config"
	"stepwise/internal/deps"
	"stepwise/internal/services"
)

const aiCheckTimeout = 30 * time.Second

// KeyValidator lists the models a credential can reach.
type KeyValidator interface {
	ValidateKey(ctx context.Context) ([]string, error)
}

// CheckAI verifies that the provider accepts the configured key. It makes a
// single listing call with a 30-second timeout.
func CheckAI(ctx context.Context, validator KeyValidator) Result {
	const name = "AI credential"
	if validator == nil {
		return Result{Name: name, Detail: "client not configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, aiCheckTimeout)
	defer cancel()

	models, err := validator.ValidateKey(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeAIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("key valid (%d models)", len(models))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps resolves the media tools named in the config.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.MediaRequirements(cfg.Frames.FFmpegBinary, cfg.Frames.FFprobeBinary))
}

// summarizeAIError produces a human-readable summary for key check failures.
func summarizeAIError(err error) string {
	if errors.Is(err, ai.ErrNoAPIKey) {
		return "API key missing (run `stepwise key set`)"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "key check timed out (provider unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "key check timed out (provider unreachable)"
	}
	switch services.Classify(err) {
	case services.KindAuth:
		return "key rejected by provider"
	case services.KindQuota:
		return "key valid but quota exhausted"
	case services.KindNetwork:
		return fmt.Sprintf("provider unreachable (%v)", err)
	}
	return err.Error()
}
