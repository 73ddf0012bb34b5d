package delayq

import (
	"context"
	"fmt"
	"time"
)

// reserveMSSQL claims a row for MSSQL/Teradata with an UPDATE … WHERE id IN
// (SELECT id FROM (<eligible LIMIT 1>) AS x), followed by a
// re-SELECT since these drivers cannot return the updated row directly.
// Wrapped in the deadlock-retry wrapper for the same reason as the MySQL
// path: the singleton subquery is not atomic with the outer UPDATE.
func reserveMSSQL(ctx context.Context, s *SQLStore, worker WorkerConfig, maxRunTime time.Duration) (*Job, error) {
	now := s.clock.Now()

	ps := &paramStyle{dollar: false}
	where, whereArgs := buildEligibility(ps, s.table(), eligibilityParams{
		Now:         now,
		WorkerName:  worker.Name,
		MaxRunTime:  maxRunTime,
		MinPriority: worker.MinPriority,
		MaxPriority: worker.MaxPriority,
		Queues:      worker.Queues,
	})

	updateQuery := fmt.Sprintf(`UPDATE %s SET locked_at=?, locked_by=? WHERE id IN (
		SELECT id FROM (
			SELECT TOP 1 id FROM %s WHERE %s ORDER BY priority ASC, run_at ASC
		) AS x
	)`, s.table(), s.table(), where)
	updateArgs := append([]any{now, worker.Name}, whereArgs...)

	selectQuery := fmt.Sprintf(`SELECT TOP 1 %s FROM %s WHERE locked_at=? AND locked_by=? AND failed_at IS NULL
		ORDER BY priority ASC, run_at ASC`, jobColumns, s.table())

	var job *Job
	err := retryOnDeadlock(defaultMaxRetryAttempts, func() error {
		job = nil
		res, err := s.db.ExecContext(ctx, updateQuery, updateArgs...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		row := s.db.QueryRowContext(ctx, selectQuery, now, worker.Name)
		j, err := scanJob(row)
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}
