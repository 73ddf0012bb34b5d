package delayq

import (
	"math/rand/v2"
	"time"
)

// defaultMaxRetryAttempts bounds how many retries a deadlock-prone claim
// statement gets beyond the initial attempt, so a call that keeps
// deadlocking is attempted defaultMaxRetryAttempts+1 times in total before
// giving up.
const defaultMaxRetryAttempts = 10

// retryOnDeadlock runs fn, retrying with jittered backoff while fn's error
// matches a transient lock-contention message. maxAttempts is the number of
// retries allowed beyond the first call; fn may therefore run up to
// maxAttempts+1 times. Any error still present once the budget is
// exhausted, or that never matched a contention message in the first
// place, is wrapped in a *RetryError before being returned so callers can
// always unwrap to find Attempts alongside the underlying error.
func retryOnDeadlock(maxAttempts int, fn func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxRetryAttempts
	}
	totalCalls := maxAttempts + 1

	var lastErr error
	attempts := 0
	for attempts = 1; attempts <= totalCalls; attempts++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isLockContention(err) || attempts == totalCalls {
			break
		}

		jitter := time.Duration(rand.Float64() * 0.1 * float64(time.Second))
		time.Sleep(jitter)
	}

	return &RetryError{Attempts: attempts, Err: lastErr}
}
