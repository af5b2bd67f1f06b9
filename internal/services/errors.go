package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Kind classifies a failed external call.
type Kind string

const (
	KindQuota       Kind = "quota"
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
	KindOverloaded  Kind = "overloaded"
	KindSafety      Kind = "safety"
	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindParse       Kind = "parse"
	KindUnknown     Kind = "unknown"
)

// KindCarrier lets an error declare its own classification. Typed declarations
// win over message sniffing.
type KindCarrier interface {
	FailureKind() Kind
}

// signatures are checked in order; the first match decides. Quota, auth and
// safety come first so a terminal failure is never retried because its
// message also names a retryable status.
var signatures = []struct {
	kind     Kind
	fragment string
}{
	{KindQuota, "quota"},
	{KindQuota, "resource_exhausted"},
	{KindAuth, "api key not valid"},
	{KindAuth, "api_key_invalid"},
	{KindAuth, "unauthenticated"},
	{KindAuth, "permission_denied"},
	{KindSafety, "safety"},
	{KindSafety, "blocked"},
	{KindRateLimited, "429"},
	{KindRateLimited, "too many requests"},
	{KindOverloaded, "503"},
	{KindOverloaded, "overloaded"},
	{KindOverloaded, "unavailable"},
	{KindTimeout, "timed out"},
	{KindNetwork, "fetch failed"},
	{KindNetwork, "network"},
	{KindNetwork, "connection refused"},
	{KindNetwork, "connection reset"},
	{KindNetwork, "no such host"},
}

// Classify maps an error to a failure Kind. Errors declaring a KindCarrier are
// trusted first, then network and deadline errors, then a case-insensitive
// substring match against known failure signatures.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var carrier KindCarrier
	if errors.As(err, &carrier) {
		if kind := carrier.FailureKind(); kind != "" {
			return kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return KindTimeout
	}
	if kind := ClassifyMessage(err.Error()); kind != KindUnknown {
		return kind
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}

// ClassifyMessage matches text against the known failure signatures,
// ignoring case. Text that matches none is KindUnknown.
func ClassifyMessage(text string) Kind {
	msg := strings.ToLower(text)
	for _, sig := range signatures {
		if strings.Contains(msg, sig.fragment) {
			return sig.kind
		}
	}
	return KindUnknown
}

// IsTerminal reports whether the kind can only be resolved by the user, so
// no status code may downgrade it to a retryable kind.
func IsTerminal(kind Kind) bool {
	switch kind {
	case KindQuota, KindAuth, KindSafety:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether failures of the given kind are worth retrying.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindRateLimited, KindOverloaded, KindNetwork:
		return true
	default:
		return false
	}
}
