package delayq

import (
	"context"
	"time"
)

// AdapterName identifies the relational backend a Store talks to. It
// selects which reservation strategy a Store uses, since PostgreSQL, MySQL
// and MSSQL/Teradata each need a different claim statement to atomically
// win a row.
type AdapterName string

const (
	AdapterPostgres AdapterName = "postgres"
	AdapterMySQL    AdapterName = "mysql"
	AdapterMSSQL    AdapterName = "mssql"
	AdapterTeradata AdapterName = "teradata"
	AdapterGeneric  AdapterName = "generic"
)

// JobBackend is the storage-and-reservation surface a worker needs,
// satisfied by PostgresStore and SQLStore so callers can swap the
// underlying database without changing call sites.
type JobBackend interface {
	Enqueue(ctx context.Context, payload any, opts Options) (*Job, error)
	Save(ctx context.Context, job *Job) error
	Destroy(ctx context.Context, job *Job) error
	Reserve(ctx context.Context, worker WorkerConfig, maxRunTime time.Duration) (*Job, error)
	ClearLocks(ctx context.Context, workerName string) error
}

// rowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows —
// enough surface to share scanJob across every backend regardless of
// driver.
type rowScanner interface {
	Scan(dest ...any) error
}
