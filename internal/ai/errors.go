package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stepwise/internal/services"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// FailureKind classifies the response. Quota, auth and safety messages in
// the body win over the status code.
func (e *StatusError) FailureKind() services.Kind {
	body := services.ClassifyMessage(e.Body)
	if services.IsTerminal(body) {
		return body
	}
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return services.KindAuth
	case e.StatusCode == http.StatusTooManyRequests:
		return services.KindRateLimited
	case e.StatusCode == http.StatusRequestTimeout:
		return services.KindNetwork
	case e.StatusCode >= http.StatusInternalServerError:
		return services.KindOverloaded
	case body != services.KindUnknown:
		return body
	default:
		return ""
	}
}

type timeoutError struct{}

func (timeoutError) Error() string { return "request timed out" }

func (timeoutError) FailureKind() services.Kind { return services.KindTimeout }

func (timeoutError) Is(target error) bool { return target == services.ErrTimeout }

// ErrTimedOut is returned when an attempt outlives the request timeout.
var ErrTimedOut error = timeoutError{}

// ErrNoAPIKey is returned when a call needs a credential and none is set.
var ErrNoAPIKey = errors.New("no API key configured")

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
