// File: internal/upload/retry.go
// Brief: Failure classification and backoff for upload attempts.

package upload

import (
	"math/rand"
	"strings"
	"time"
)

// ClassifyError buckets a transport failure for attempt records and logs.
// Every direct-path failure consumes retry budget regardless of class; the
// class only explains what happened.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "throttl") || strings.Contains(msg, "slowdown"):
		return "RATE_LIMIT"
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "request timeout"):
		return "TIMEOUT"
	case strings.Contains(msg, "connection reset") || strings.Contains(msg, "broken pipe") || strings.Contains(msg, "eof"):
		return "TRANSPORT"
	case strings.Contains(msg, "service unavailable") || strings.Contains(msg, "temporarily unavailable"):
		return "UNAVAILABLE"
	case strings.Contains(msg, "internal error") || strings.Contains(msg, "server error"):
		return "SERVER_5XX"
	default:
		return "OTHER"
	}
}

// DefaultBackoff is the delay before re-entering the direct attempt state.
// attempt is 1-based.
func DefaultBackoff(attempt int) time.Duration {
	base := 2 * time.Second
	if attempt <= 1 {
		return jitter(base)
	}
	d := base * time.Duration(1<<uint(min(attempt-1, 4)))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return jitter(d)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	// +/- 20%
	f := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * f)
}
