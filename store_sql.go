package delayq

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sqlExecutor is satisfied by both *sql.DB and *sql.Tx, letting Destroy
// share its statements between the top-level connection and the
// transaction it opens for the singleton-sibling cascade.
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is the database/sql-backed JobBackend used for MySQL, MSSQL,
// Teradata and the generic fallback. The adapter selects which of the
// three non-PostgreSQL reservation strategies Reserve dispatches to.
type SQLStore struct {
	db          *sql.DB
	adapter     AdapterName
	tablePrefix string
	clock       Clock
	serializer  Serializer
	logger      TaggedLogger
	metrics     *Metrics
	readAhead   int
}

// NewSQLStore constructs a Store for adapter over an already-open *sql.DB
// (opened with "mysql", "mssql" or any other database/sql driver name).
func NewSQLStore(db *sql.DB, adapter AdapterName, opts ...StoreOption) *SQLStore {
	s := &SQLStore{
		db:         db,
		adapter:    adapter,
		clock:      NewUTCClock(),
		serializer: JSONSerializer{},
		readAhead:  10,
	}
	for _, opt := range opts {
		opt.applySQL(s)
	}
	return s
}

func (s *SQLStore) SetTablePrefix(prefix string) {
	s.tablePrefix = prefix
}

func (s *SQLStore) table() string {
	return tableNameFor(s.tablePrefix)
}

// Enqueue persists a new job, applying the same derivation and defaulting
// rules as every other backend's Enqueue.
func (s *SQLStore) Enqueue(ctx context.Context, payload any, opts Options) (*Job, error) {
	pi, err := prepareInsert(s.clock, s.serializer, payload, opts)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`INSERT INTO %s (priority, handler, run_at, queue, failed_at, locked_at, locked_by, singleton)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table())

	res, err := s.db.ExecContext(ctx, query,
		pi.Priority, pi.Handler, pi.RunAt, pi.Queue, pi.FailedAt, pi.LockedAt, pi.LockedBy, pi.Singleton,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.getByID(ctx, s.db, id)
}

func (s *SQLStore) getByID(ctx context.Context, ex sqlExecutor, id int64) (*Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, jobColumns, s.table())
	row := ex.QueryRowContext(ctx, query, id)
	return scanJob(row)
}

// Save defaults RunAt to now if it's zero and persists job's mutable
// fields, wrapped in the deadlock-retry wrapper.
func (s *SQLStore) Save(ctx context.Context, job *Job) error {
	if job.RunAt.IsZero() {
		job.RunAt = s.clock.Now()
	}

	query := fmt.Sprintf(`UPDATE %s SET priority=?, attempts=?, handler=?, last_error=?,
		run_at=?, locked_at=?, locked_by=?, failed_at=?, queue=?, singleton=?, updated_at=?
		WHERE id=?`, s.table())

	return retryOnDeadlock(defaultMaxRetryAttempts, func() error {
		now := s.clock.Now()
		_, err := s.db.ExecContext(ctx, query,
			job.Priority, job.Attempts, job.Handler, job.LastError, job.RunAt,
			job.LockedAt, job.LockedBy, job.FailedAt, job.Queue, job.Singleton, now, job.ID,
		)
		if err == nil {
			job.UpdatedAt = now
		}
		return err
	})
}

// Destroy deletes job and, if it belongs to a singleton class, every other
// row sharing that class, all inside one transaction. If the payload isn't
// deserializable the singleton cleanup is skipped and logged rather than
// aborting the destroy.
func (s *SQLStore) Destroy(ctx context.Context, job *Job) error {
	return retryOnDeadlock(defaultMaxRetryAttempts, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck

		if job.Singleton.Valid {
			if _, err := s.serializer.Unmarshal(job.Handler); err != nil {
				if s.logger != nil {
					s.logger.Error("delayq: skipping singleton cleanup, payload not deserializable", err)
				}
			} else {
				query := fmt.Sprintf(`DELETE FROM %s WHERE singleton=? AND id<>?`, s.table())
				if _, err := tx.ExecContext(ctx, query, job.Singleton, job.ID); err != nil {
					return err
				}
			}
		}

		query := fmt.Sprintf(`DELETE FROM %s WHERE id=?`, s.table())
		if _, err := tx.ExecContext(ctx, query, job.ID); err != nil {
			return err
		}

		return tx.Commit()
	})
}

// ClearLocks releases every lock this worker holds, wrapped in the
// deadlock-retry wrapper.
func (s *SQLStore) ClearLocks(ctx context.Context, workerName string) error {
	query := fmt.Sprintf(`UPDATE %s SET locked_by=NULL, locked_at=NULL WHERE locked_by=?`, s.table())
	return retryOnDeadlock(defaultMaxRetryAttempts, func() error {
		_, err := s.db.ExecContext(ctx, query, workerName)
		return err
	})
}

// Reserve dispatches to the reservation strategy matching s.adapter:
// two-step UPDATE+SELECT for MySQL, subselect UPDATE+SELECT for
// MSSQL/Teradata, and read-ahead optimistic CAS for anything else.
func (s *SQLStore) Reserve(ctx context.Context, worker WorkerConfig, maxRunTime time.Duration) (*Job, error) {
	if worker.Name == "" {
		return nil, ErrMissingWorkerName
	}
	start := time.Now()

	var job *Job
	var err error
	switch s.adapter {
	case AdapterMySQL:
		job, err = reserveMySQL(ctx, s, worker, maxRunTime)
	case AdapterMSSQL, AdapterTeradata:
		job, err = reserveMSSQL(ctx, s, worker, maxRunTime)
	default:
		job, err = reserveFallback(ctx, s, worker, maxRunTime)
	}

	switch {
	case err != nil:
		s.metrics.observeReserve("error", time.Since(start))
	case job == nil:
		s.metrics.observeReserve("empty", time.Since(start))
	default:
		s.metrics.observeReserve("claimed", time.Since(start))
	}
	return job, err
}

// BeforeFork closes the underlying *sql.DB's connection pool so a forking
// process manager doesn't leave the child holding connections the parent
// also thinks it owns.
func (s *SQLStore) BeforeFork() error {
	return s.db.Close()
}

// AfterFork re-opens the connection using the same driver and DSN.
// Callers must supply the DSN again since *sql.DB does not expose the one
// it was opened with.
func (s *SQLStore) AfterFork(driverName, dsn string) error {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}
