package delayq

import "fmt"

// jobColumns is the column order every SELECT/RETURNING clause in this
// package uses; scanJob must stay in lockstep with it.
const jobColumns = `id, priority, attempts, handler, last_error, run_at, locked_at, locked_by, failed_at, queue, singleton, created_at, updated_at`

// scanJob reads one jobColumns-shaped row into a *Job, shared across every
// backend's driver (pgx and database/sql both expose a compatible Scan).
func scanJob(r rowScanner) (*Job, error) {
	var j Job
	if err := r.Scan(
		&j.ID, &j.Priority, &j.Attempts, &j.Handler, &j.LastError, &j.RunAt,
		&j.LockedAt, &j.LockedBy, &j.FailedAt, &j.Queue, &j.Singleton,
		&j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &j, nil
}

// defaultTableName is the unprefixed table name; tableNameFor prepends the
// Store's prefix (empty by default) to it.
const defaultTableName = "delayed_jobs"

// tableNameFor renders the table name a prefix resolves to, e.g. "" yields
// "delayed_jobs" and "acct_" yields "acct_delayed_jobs".
func tableNameFor(prefix string) string {
	return fmt.Sprintf("%s%s", prefix, defaultTableName)
}
