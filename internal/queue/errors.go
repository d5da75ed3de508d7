package queue

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// TransientQueueError is returned when a queue operation keeps failing after
// the bounded retry count is exhausted. It aborts only the current operation,
// never the process.
type TransientQueueError struct {
	Op       string
	Attempts int
	Cause    error
}

func (e *TransientQueueError) Error() string {
	return fmt.Sprintf("queue %s failed after %d attempts: %v", e.Op, e.Attempts, e.Cause)
}

func (e *TransientQueueError) Unwrap() error {
	return e.Cause
}

// DeleteError is returned when a delete fails because the receipt handle is
// stale or expired. The message's fate is already decided by the provider's
// visibility mechanics, so callers log and continue.
type DeleteError struct {
	Cause error
}

func (e *DeleteError) Error() string {
	return "delete failed, receipt handle stale or expired: " + e.Cause.Error()
}

func (e *DeleteError) Unwrap() error {
	return e.Cause
}

// IsTransientQueueError checks if an error is an exhausted-retries queue error
func IsTransientQueueError(err error) bool {
	var tqErr *TransientQueueError
	return errors.As(err, &tqErr)
}

// IsDeleteError checks if an error is a stale receipt handle error
func IsDeleteError(err error) bool {
	var dErr *DeleteError
	return errors.As(err, &dErr)
}

// isStaleHandle detects provider responses for invalid or expired receipt
// handles
func isStaleHandle(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "ReceiptHandleIsInvalid") ||
		strings.Contains(msg, "InvalidParameterValue") ||
		strings.Contains(msg, "receipt handle has expired")
}

// isTransient classifies network hiccups and provider-side 5xx/throttling
// responses as retryable
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection",
		"timeout",
		"temporary",
		"unavailable",
		"internal error",
		"throttl",
		"status code: 5",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
