package ai

import (
	"errors"
	"time"
)

// RetryPolicy bounds how transient failures are repeated.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy makes three attempts starting at two seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 16 * time.Second}
}

func (p RetryPolicy) attempts() int {
	if p.Attempts <= 0 {
		return 1
	}
	return p.Attempts
}

// delay returns the wait before the attempt following attempt (1-based). A
// Retry-After hint from the server wins over the computed backoff.
func (p RetryPolicy) delay(attempt int, err error) time.Duration {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return p.capDelay(statusErr.RetryAfter)
	}
	return p.backoff(attempt)
}

// backoff doubles from BaseDelay: attempt 1 -> base, 2 -> base*2, 3 -> base*4.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt <= 0 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if p.MaxDelay > 0 && delay > p.MaxDelay/2 {
			delay = p.MaxDelay
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p RetryPolicy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
