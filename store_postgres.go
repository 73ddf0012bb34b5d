package delayq

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the PostgreSQL-backed JobBackend, built directly on
// pgx/v5: a *pgxpool.Pool plus prepared-statement-free queries. Its Reserve
// needs no deadlock-retry wrapper, since PostgreSQL's single UPDATE …
// RETURNING statement claims a row atomically; Save, Destroy and ClearLocks
// are wrapped in it.
type PostgresStore struct {
	pool        *pgxpool.Pool
	tablePrefix string
	clock       Clock
	serializer  Serializer
	logger      TaggedLogger
	metrics     *Metrics
}

// NewPostgresStore constructs a PostgresStore over an already-open pool.
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) *PostgresStore {
	s := &PostgresStore{
		pool:       pool,
		clock:      NewUTCClock(),
		serializer: JSONSerializer{},
	}
	for _, opt := range opts {
		opt.applyPostgres(s)
	}
	return s
}

// SetTablePrefix rebinds the table prefix so tests can reconfigure a live
// Store without reconstructing it.
func (s *PostgresStore) SetTablePrefix(prefix string) {
	s.tablePrefix = prefix
}

func (s *PostgresStore) table() string {
	return tableNameFor(s.tablePrefix)
}

// Enqueue persists a new job, applying the same derivation and defaulting
// rules as every other backend's Enqueue.
func (s *PostgresStore) Enqueue(ctx context.Context, payload any, opts Options) (*Job, error) {
	pi, err := prepareInsert(s.clock, s.serializer, payload, opts)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`INSERT INTO %s (priority, handler, run_at, queue, failed_at, locked_at, locked_by, singleton)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+jobColumns, s.table())

	row := s.pool.QueryRow(ctx, query,
		pi.Priority, pi.Handler, pi.RunAt, pi.Queue, pi.FailedAt, pi.LockedAt, pi.LockedBy, pi.Singleton,
	)
	return scanJob(row)
}

// Save defaults RunAt to now if it's zero and persists job's mutable
// fields, wrapped in the deadlock-retry wrapper.
func (s *PostgresStore) Save(ctx context.Context, job *Job) error {
	if job.RunAt.IsZero() {
		job.RunAt = s.clock.Now()
	}

	query := fmt.Sprintf(`UPDATE %s SET priority=$1, attempts=$2, handler=$3, last_error=$4,
		run_at=$5, locked_at=$6, locked_by=$7, failed_at=$8, queue=$9, singleton=$10, updated_at=now()
		WHERE id=$11 RETURNING updated_at`, s.table())

	return retryOnDeadlock(defaultMaxRetryAttempts, func() error {
		row := s.pool.QueryRow(ctx, query,
			job.Priority, job.Attempts, job.Handler, job.LastError, job.RunAt,
			job.LockedAt, job.LockedBy, job.FailedAt, job.Queue, job.Singleton, job.ID,
		)
		return row.Scan(&job.UpdatedAt)
	})
}

// Destroy deletes job and, if it belongs to a singleton class, every other
// row sharing that class, all inside one transaction. If the payload isn't
// deserializable the singleton cleanup is skipped and logged rather than
// aborting the destroy.
func (s *PostgresStore) Destroy(ctx context.Context, job *Job) error {
	return retryOnDeadlock(defaultMaxRetryAttempts, func() error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if job.Singleton.Valid {
				if _, err := s.serializer.Unmarshal(job.Handler); err != nil {
					if s.logger != nil {
						s.logger.Error("delayq: skipping singleton cleanup, payload not deserializable", err)
					}
				} else {
					query := fmt.Sprintf(`DELETE FROM %s WHERE singleton=$1 AND id<>$2`, s.table())
					if _, err := tx.Exec(ctx, query, job.Singleton, job.ID); err != nil {
						return err
					}
				}
			}

			query := fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, s.table())
			_, err := tx.Exec(ctx, query, job.ID)
			return err
		})
	})
}

// ClearLocks releases every lock this worker holds.
func (s *PostgresStore) ClearLocks(ctx context.Context, workerName string) error {
	query := fmt.Sprintf(`UPDATE %s SET locked_by=NULL, locked_at=NULL WHERE locked_by=$1`, s.table())
	return retryOnDeadlock(defaultMaxRetryAttempts, func() error {
		_, err := s.pool.Exec(ctx, query, workerName)
		return err
	})
}

// Reserve claims a row with a single UPDATE … WHERE id IN (SELECT … FOR
// UPDATE) … RETURNING *. The row-level FOR UPDATE
// inside the subquery is required; without it two concurrent reservations
// can both select the same eligible id before either locks it.
func (s *PostgresStore) Reserve(ctx context.Context, worker WorkerConfig, maxRunTime time.Duration) (*Job, error) {
	if worker.Name == "" {
		return nil, ErrMissingWorkerName
	}
	start := time.Now()

	ps := &paramStyle{dollar: true}
	where, args := buildEligibility(ps, s.table(), eligibilityParams{
		Now:         s.clock.Now(),
		WorkerName:  worker.Name,
		MaxRunTime:  maxRunTime,
		MinPriority: worker.MinPriority,
		MaxPriority: worker.MaxPriority,
		Queues:      worker.Queues,
	})

	lockedAtArg := ps.next()
	args = append(args, s.clock.Now())
	lockedByArg := ps.next()
	args = append(args, worker.Name)

	query := fmt.Sprintf(`UPDATE %s SET locked_at=%s, locked_by=%s
		WHERE id IN (
			SELECT id FROM %s WHERE %s ORDER BY priority ASC, run_at ASC LIMIT 1 FOR UPDATE
		)
		RETURNING `+jobColumns, s.table(), lockedAtArg, lockedByArg, s.table(), where)

	row := s.pool.QueryRow(ctx, query, args...)
	job, err := scanJob(row)
	if err == pgx.ErrNoRows {
		s.metrics.observeReserve("empty", time.Since(start))
		return nil, nil
	}
	if err != nil {
		s.metrics.observeReserve("error", time.Since(start))
		return nil, err
	}
	s.metrics.observeReserve("claimed", time.Since(start))
	return job, nil
}

// BeforeFork closes every connection in the pool so a pre-forking worker
// manager can safely duplicate the process.
func (s *PostgresStore) BeforeFork() {
	s.pool.Close()
}

// AfterFork re-establishes a connection pool using the same config after a
// fork.
func (s *PostgresStore) AfterFork(ctx context.Context) error {
	cfg := s.pool.Config()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	s.pool = pool
	return nil
}
