package delayq

import (
	"context"
	"fmt"
	"time"
)

// defaultReadAhead is used when neither the worker nor the Store specify a
// read-ahead size.
const defaultReadAhead = 10

// reserveFallback is the generic strategy for backends with no atomic
// "claim the winning row" statement: fetch up to read_ahead eligible ids in
// priority/run_at order, then attempt a conditional UPDATE … WHERE id=? AND
// <still eligible> compare-and-swap on each in turn, returning the first
// one this call actually wins. A call can therefore skip an earlier-
// priority row whose CAS lost a race to a concurrent worker rather than
// retrying it within the same read-ahead batch; the next Reserve call will
// pick it up if it's still eligible.
func reserveFallback(ctx context.Context, s *SQLStore, worker WorkerConfig, maxRunTime time.Duration) (*Job, error) {
	readAhead := worker.ReadAhead
	if readAhead <= 0 {
		readAhead = s.readAhead
	}
	if readAhead <= 0 {
		readAhead = defaultReadAhead
	}
	now := s.clock.Now()

	var job *Job
	err := retryOnDeadlock(defaultMaxRetryAttempts, func() error {
		job = nil

		listPS := &paramStyle{dollar: false}
		listWhere, listArgs := buildEligibility(listPS, s.table(), eligibilityParams{
			Now:         now,
			WorkerName:  worker.Name,
			MaxRunTime:  maxRunTime,
			MinPriority: worker.MinPriority,
			MaxPriority: worker.MaxPriority,
			Queues:      worker.Queues,
		})
		listQuery := fmt.Sprintf(`SELECT id FROM %s WHERE %s ORDER BY priority ASC, run_at ASC LIMIT ?`,
			s.table(), listWhere)
		listArgs = append(listArgs, readAhead)

		rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
		if err != nil {
			return err
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, id := range ids {
			casPS := &paramStyle{dollar: false}
			casWhere, casArgs := buildEligibility(casPS, s.table(), eligibilityParams{
				Now:         now,
				WorkerName:  worker.Name,
				MaxRunTime:  maxRunTime,
				MinPriority: worker.MinPriority,
				MaxPriority: worker.MaxPriority,
				Queues:      worker.Queues,
			})
			updateQuery := fmt.Sprintf(`UPDATE %s SET locked_at=?, locked_by=? WHERE id=? AND (%s)`, s.table(), casWhere)
			updateArgs := append([]any{now, worker.Name, id}, casArgs...)

			res, err := s.db.ExecContext(ctx, updateQuery, updateArgs...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n != 1 {
				continue
			}

			j, err := s.getByID(ctx, s.db, id)
			if err != nil {
				return err
			}
			job = j
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}
