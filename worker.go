package delayq

import (
	"context"
	"database/sql"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// Performer is the capability a deserialized payload exposes to actually
// run a job. Runner.invoke is a thin wrapper around this: how a payload
// executes is entirely up to the payload's own Perform method; this
// package only defines the seam.
type Performer interface {
	Perform(ctx context.Context) error
}

// JobHandler is an alternative to the Performer capability: a single
// dispatch function a Runner is constructed with, for callers who would
// rather not make their payload type implement Perform directly.
type JobHandler func(ctx context.Context, payload any, job *Job) error

// DelayFunction computes the backoff, in seconds, before a failed job's
// next attempt, as a function of its attempt count.
type DelayFunction func(attempts int) time.Duration

func defaultDelayFunction(attempts int) time.Duration {
	return time.Duration(intPow(attempts, 4)+3) * time.Second
}

func intPow(base, exp int) int {
	result := 1
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// Runner reserves eligible jobs from a JobBackend and executes them. It is
// a reference worker loop, not a production-grade one: real deployments
// will want their own polling policy, concurrency model and metrics wiring
// around the same Reserve/Destroy/Save calls Runner makes here.
type Runner struct {
	backend     JobBackend
	worker      WorkerConfig
	maxRunTime  time.Duration
	maxAttempts int
	serializer  Serializer
	logger      TaggedLogger
	delayFn     DelayFunction
	handler     JobHandler

	pollInterval time.Duration

	mu       sync.Mutex
	done     bool
	shutdown chan struct{}
}

// RunnerOption configures a Runner at construction.
type RunnerOption func(*Runner)

// WithRunnerSerializer overrides the default JSONSerializer used to decode
// a job's handler blob before invocation.
func WithRunnerSerializer(s Serializer) RunnerOption {
	return func(r *Runner) { r.serializer = s }
}

// WithRunnerLogger attaches the tagged-logger collaborator.
func WithRunnerLogger(l TaggedLogger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithDelayFunction overrides the default exponential-ish backoff.
func WithDelayFunction(fn DelayFunction) RunnerOption {
	return func(r *Runner) { r.delayFn = fn }
}

// WithMaxAttempts sets the attempt count at which a failing job is marked
// permanently failed (failed_at set) instead of retried.
func WithMaxAttempts(n int) RunnerOption {
	return func(r *Runner) { r.maxAttempts = n }
}

// WithPollInterval sets how long Work sleeps after a reservation attempt
// finds no eligible job.
func WithPollInterval(d time.Duration) RunnerOption {
	return func(r *Runner) { r.pollInterval = d }
}

// NewRunner constructs a Runner over backend, reserving with worker's
// identity/filters and maxRunTime lock lease, dispatching successfully
// reserved jobs to handler.
func NewRunner(backend JobBackend, worker WorkerConfig, maxRunTime time.Duration, handler JobHandler, opts ...RunnerOption) *Runner {
	r := &Runner{
		backend:      backend,
		worker:       worker,
		maxRunTime:   maxRunTime,
		maxAttempts:  25,
		serializer:   JSONSerializer{},
		delayFn:      defaultDelayFunction,
		handler:      handler,
		pollInterval: 5 * time.Second,
		shutdown:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WorkOne reserves at most one job and, if one was found, executes it.
// It reports whether a job was reserved and run (true), or whether the
// queue was empty or Reserve returned an error (false).
func (r *Runner) WorkOne(ctx context.Context) bool {
	job, err := r.backend.Reserve(ctx, r.worker, r.maxRunTime)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("delayq: reserve failed", err)
		}
		return false
	}
	if job == nil {
		return false
	}

	tl := r.logger
	if tl != nil {
		tl = tl.Tagged(fmt.Sprintf("job=%d", job.ID))
		tl.Info("Entering job")
	}

	runErr := r.invoke(ctx, job)

	if tl != nil {
		tl.Info("Exiting job")
	}

	if runErr == nil {
		if err := r.backend.Destroy(ctx, job); err != nil && r.logger != nil {
			r.logger.Error("delayq: destroy failed after successful job", err)
		}
		return true
	}

	r.fail(ctx, job, runErr)
	return true
}

// invoke decodes job's handler and runs it, recovering a panic into an
// error carrying a stack trace so a misbehaving handler fails the job
// instead of taking down the worker process.
func (r *Runner) invoke(ctx context.Context, job *Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v\n%s", rec, debug.Stack())
		}
	}()

	payload, decodeErr := r.serializer.Unmarshal(job.Handler)
	if decodeErr != nil {
		return decodeErr
	}

	if r.handler != nil {
		return r.handler(ctx, payload, job)
	}
	if performer, ok := payload.(Performer); ok {
		return performer.Perform(ctx)
	}
	return fmt.Errorf("delayq: no handler registered for job %d", job.ID)
}

// fail records runErr on job and either reschedules it with backoff or, at
// maxAttempts, marks it permanently failed (failed_at set, lock cleared).
func (r *Runner) fail(ctx context.Context, job *Job, runErr error) {
	now := time.Now()
	job.Attempts++
	job.LastError = sql.NullString{String: runErr.Error(), Valid: true}
	job.LockedAt = sql.NullTime{}
	job.LockedBy = sql.NullString{}

	if job.Attempts >= r.maxAttempts {
		job.FailedAt = sql.NullTime{Time: now, Valid: true}
	} else {
		job.RunAt = now.Add(r.delayFn(job.Attempts))
	}

	if err := r.backend.Save(ctx, job); err != nil && r.logger != nil {
		r.logger.Error("delayq: save failed after job error", err)
	}
}

// Work runs WorkOne in a loop, sleeping pollInterval whenever the queue was
// empty, until Shutdown is called or ctx is done.
func (r *Runner) Work(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.done = true
		r.mu.Unlock()
	}()

	for {
		select {
		case <-r.shutdown:
			return
		case <-ctx.Done():
			return
		default:
		}

		if !r.WorkOne(ctx) {
			select {
			case <-r.shutdown:
				return
			case <-ctx.Done():
				return
			case <-time.After(r.pollInterval):
			}
		}
	}
}

// Shutdown signals Work to stop after its current iteration.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	select {
	case <-r.shutdown:
	default:
		close(r.shutdown)
	}
}

// Done reports whether Work has returned.
func (r *Runner) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
