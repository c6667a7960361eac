package crawler

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// failureKind buckets transport errors for logs and retry accounting
type failureKind string

const (
	failTimeout     failureKind = "timeout"
	failUnreachable failureKind = "unreachable"
	failConnection  failureKind = "connection_error"
	failOther       failureKind = "other"
)

// classifyFailure maps one failed fetch attempt to its bucket. SOCKS-layer
// refusals mean the proxy could not reach the service at all.
func classifyFailure(err error) failureKind {
	if err == nil {
		return failOther
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return failTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failTimeout
	}

	message := strings.ToLower(err.Error())
	if strings.Contains(message, "socks") || strings.Contains(message, "proxy") {
		return failUnreachable
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return failConnection
	}
	if strings.Contains(message, "connection refused") ||
		strings.Contains(message, "connection reset") ||
		strings.Contains(message, "broken pipe") ||
		strings.Contains(message, "eof") {
		return failConnection
	}

	return failOther
}

// backoffDelay returns 2^attempt seconds, capped so a misconfigured retry
// count cannot park a worker for minutes.
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}
