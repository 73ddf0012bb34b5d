package delayq

import (
	"database/sql"
	"time"
)

// pendingInsert is the fully-defaulted, fully-derived set of column values
// for a new row, shared by every backend's Enqueue.
type pendingInsert struct {
	Priority  int
	RunAt     time.Time
	Handler   []byte
	Queue     sql.NullString
	FailedAt  sql.NullTime
	LockedAt  sql.NullTime
	LockedBy  sql.NullString
	Singleton sql.NullString
}

// prepareInsert resolves a payload and Options down to the concrete column
// values a backend's Enqueue inserts: a SingletonQueueNamer payload's name
// overrides Options.Singleton, and RunAt defaults to clock.Now() when unset.
func prepareInsert(clock Clock, serializer Serializer, payload any, opts Options) (pendingInsert, error) {
	handler := opts.Handler
	if handler == nil {
		encoded, err := serializer.Marshal(payload)
		if err != nil {
			return pendingInsert{}, err
		}
		handler = encoded
	}

	runAt := opts.RunAt
	if runAt.IsZero() {
		runAt = clock.Now()
	}

	singleton := opts.Singleton
	if namer, ok := payload.(SingletonQueueNamer); ok {
		if name, has := namer.SingletonQueueName(); has {
			singleton = name
		}
	}

	pi := pendingInsert{
		Priority: opts.Priority,
		RunAt:    runAt,
		Handler:  handler,
		Queue:    sql.NullString{String: opts.Queue, Valid: opts.Queue != ""},
		FailedAt: sql.NullTime{Time: opts.FailedAt, Valid: !opts.FailedAt.IsZero()},
		LockedAt: sql.NullTime{Time: opts.LockedAt, Valid: !opts.LockedAt.IsZero()},
		LockedBy: sql.NullString{String: opts.LockedBy, Valid: opts.LockedBy != ""},
		Singleton: sql.NullString{
			String: singleton,
			Valid:  singleton != "",
		},
	}
	return pi, nil
}
