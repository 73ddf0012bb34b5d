package delayq

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"
)

// memBackend is an in-memory JobBackend used by this package's own tests to
// exercise the eligibility predicate, singleton exclusion and ordering
// rules without a live database. It implements the same semantics as the
// SQL backends directly in Go rather than re-testing SQL string generation
// (covered separately in predicate_test.go).
type memBackend struct {
	mu         sync.Mutex
	rows       map[int64]*Job
	nextID     int64
	clock      Clock
	serializer Serializer
}

func newMemBackend() *memBackend {
	return &memBackend{
		rows:       map[int64]*Job{},
		clock:      NewUTCClock(),
		serializer: JSONSerializer{},
	}
}

func (m *memBackend) Enqueue(ctx context.Context, payload any, opts Options) (*Job, error) {
	pi, err := prepareInsert(m.clock, m.serializer, payload, opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := m.clock.Now()
	job := &Job{
		ID:        m.nextID,
		Priority:  pi.Priority,
		Handler:   pi.Handler,
		RunAt:     pi.RunAt,
		Queue:     pi.Queue,
		FailedAt:  pi.FailedAt,
		LockedAt:  pi.LockedAt,
		LockedBy:  pi.LockedBy,
		Singleton: pi.Singleton,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.rows[job.ID] = job
	cp := *job
	return &cp, nil
}

func (m *memBackend) Save(ctx context.Context, job *Job) error {
	if job.RunAt.IsZero() {
		job.RunAt = m.clock.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job.UpdatedAt = m.clock.Now()
	cp := *job
	m.rows[job.ID] = &cp
	return nil
}

func (m *memBackend) Destroy(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.Singleton.Valid {
		if _, err := m.serializer.Unmarshal(job.Handler); err == nil {
			for id, row := range m.rows {
				if id == job.ID {
					continue
				}
				if row.Singleton.Valid && row.Singleton.String == job.Singleton.String {
					delete(m.rows, id)
				}
			}
		}
		// deserialization failure: skip sibling cleanup, still destroy job.
	}
	delete(m.rows, job.ID)
	return nil
}

func (m *memBackend) ClearLocks(ctx context.Context, workerName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.LockedBy.Valid && row.LockedBy.String == workerName {
			row.LockedAt = sql.NullTime{}
			row.LockedBy = sql.NullString{}
		}
	}
	return nil
}

func (m *memBackend) eligible(row *Job, now time.Time, worker WorkerConfig, maxRunTime time.Duration, liveLockedSingletons map[string]bool) bool {
	if row.FailedAt.Valid {
		return false
	}

	ready := !row.RunAt.After(now) && (!row.LockedAt.Valid || row.LockedAt.Time.Before(now.Add(-maxRunTime)))
	mine := row.LockedBy.Valid && row.LockedBy.String == worker.Name
	if !ready && !mine {
		return false
	}

	if worker.MinPriority != nil && row.Priority < *worker.MinPriority {
		return false
	}
	if worker.MaxPriority != nil && row.Priority > *worker.MaxPriority {
		return false
	}
	if len(worker.Queues) > 0 {
		found := false
		for _, q := range worker.Queues {
			if row.Queue.Valid && row.Queue.String == q {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if row.Singleton.Valid && liveLockedSingletons[row.Singleton.String] {
		return false
	}
	return true
}

func (m *memBackend) Reserve(ctx context.Context, worker WorkerConfig, maxRunTime time.Duration) (*Job, error) {
	if worker.Name == "" {
		return nil, ErrMissingWorkerName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	cutoff := now.Add(-maxRunTime)

	liveLockedSingletons := map[string]bool{}
	for _, row := range m.rows {
		if row.FailedAt.Valid {
			continue
		}
		if row.RunAt.After(now) {
			continue
		}
		if !row.Singleton.Valid {
			continue
		}
		if row.LockedAt.Valid && !row.LockedAt.Time.Before(cutoff) && row.LockedBy.String != worker.Name {
			liveLockedSingletons[row.Singleton.String] = true
		}
	}

	var candidates []*Job
	for _, row := range m.rows {
		if m.eligible(row, now, worker, maxRunTime, liveLockedSingletons) {
			candidates = append(candidates, row)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		if !candidates[i].RunAt.Equal(candidates[j].RunAt) {
			return candidates[i].RunAt.Before(candidates[j].RunAt)
		}
		return candidates[i].ID < candidates[j].ID
	})

	winner := candidates[0]
	winner.LockedAt = sql.NullTime{Time: now, Valid: true}
	winner.LockedBy = sql.NullString{String: worker.Name, Valid: true}
	cp := *winner
	return &cp, nil
}
