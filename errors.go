package delayq

import (
	"errors"
	"fmt"
	"strings"
)

// lockContentionMessages are the driver error substrings that the
// deadlock-retry wrapper treats as transient and retries. Matching is by
// message rather than typed error, since database/sql drivers don't expose
// a stable error type across MySQL and MSSQL for lock timeouts.
var lockContentionMessages = []string{
	"Lock wait timeout exceeded",
	"Deadlock found when trying to get lock",
}

// RetryError wraps any error that passed through retryOnDeadlock, whether
// or not it was ultimately retried. Callers distinguish the underlying
// cause by unwrapping or by inspecting Error()'s message.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("delayq: gave up after %d attempt(s): %s", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// DeserializationError is returned by a Serializer when a handler blob
// cannot be decoded. It is tolerated (logged and swallowed) only within the
// singleton-sibling cleanup path of Destroy; everywhere else it propagates.
type DeserializationError struct {
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("delayq: payload deserialization failed: %s", e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// ErrMissingWorkerName is returned by Reserve when worker.Name is empty.
var ErrMissingWorkerName = errors.New("delayq: worker name must not be empty")

// isLockContention reports whether err's message matches one of the
// driver-reported transient lock-contention strings.
func isLockContention(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range lockContentionMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
