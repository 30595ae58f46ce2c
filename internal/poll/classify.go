package poll

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// retryable is implemented by collaborator client errors that know whether
// their status code is worth retrying (5xx vs 4xx).
type retryable interface {
	IsRetryable() bool
}

// IsTransient classifies an error as a network-level failure expected to
// resolve on retry. Application-level rejections are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	// Fallback for errors that only carry a message (proxies, wrapped
	// transport errors from other runtimes).
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"timeout",
		"timed out",
		"temporarily unavailable",
		"no such host",
		"network is unreachable",
		"socket hang up",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
