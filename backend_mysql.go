package delayq

import (
	"context"
	"fmt"
	"time"
)

// reserveMySQL claims a row in two steps: an UPDATE … LIMIT 1 applying the
// eligibility filter and priority/run_at order, followed by a re-SELECT
// identifying the row this call just locked. MySQL has no RETURNING clause,
// so the UPDATE alone can't tell us which row it touched. now is truncated
// to whole seconds because MySQL's DATETIME columns (absent
// fractional-seconds precision) would otherwise never compare equal to a
// sub-second Go time.Time in the re-SELECT. The statement is wrapped in the
// deadlock-retry wrapper because the singleton subquery is not atomic with
// the outer UPDATE, so MySQL can report a real deadlock here under
// concurrent claims.
func reserveMySQL(ctx context.Context, s *SQLStore, worker WorkerConfig, maxRunTime time.Duration) (*Job, error) {
	lockedAt := s.clock.Now().Truncate(time.Second)

	ps := &paramStyle{dollar: false}
	where, whereArgs := buildEligibility(ps, s.table(), eligibilityParams{
		Now:         lockedAt,
		WorkerName:  worker.Name,
		MaxRunTime:  maxRunTime,
		MinPriority: worker.MinPriority,
		MaxPriority: worker.MaxPriority,
		Queues:      worker.Queues,
	})

	updateQuery := fmt.Sprintf(`UPDATE %s SET locked_at=?, locked_by=? WHERE %s ORDER BY priority ASC, run_at ASC LIMIT 1`,
		s.table(), where)
	updateArgs := append([]any{lockedAt, worker.Name}, whereArgs...)

	selectQuery := fmt.Sprintf(`SELECT %s FROM %s WHERE locked_at=? AND locked_by=? AND failed_at IS NULL
		ORDER BY priority ASC, run_at ASC LIMIT 1`, jobColumns, s.table())

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

		row := s.db.QueryRowContext(ctx, selectQuery, lockedAt, worker.Name)
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
