package delayq

import (
	"database/sql"
	"time"
)

// Job is a row in the <prefix>delayed_jobs table. NullString and NullTime
// model the optional columns; ID is opaque and assigned by the store on
// insert.
type Job struct {
	ID         int64
	Priority   int
	Attempts   int
	Handler    []byte
	LastError  sql.NullString
	RunAt      time.Time
	LockedAt   sql.NullTime
	LockedBy   sql.NullString
	FailedAt   sql.NullTime
	Queue      sql.NullString
	Singleton  sql.NullString
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Locked reports whether the job currently holds a lock. locked_at and
// locked_by are always set or cleared together in any row this package
// produces, so checking both catches a partially-written row.
func (j *Job) Locked() bool {
	return j.LockedAt.Valid && j.LockedBy.Valid
}

// Failed reports whether the job is permanently failed (failed_at set).
func (j *Job) Failed() bool {
	return j.FailedAt.Valid
}

// SingletonQueueNamer is the optional capability a payload may implement to
// derive the job's singleton class at enqueue time. When present, its
// result overrides any caller-supplied Options.Singleton.
type SingletonQueueNamer interface {
	SingletonQueueName() (string, bool)
}

// Serializer converts a payload to and from the handler blob persisted in
// the job row. Applications with their own wire format supply their own
// Serializer; JSONSerializer is the default.
type Serializer interface {
	Marshal(payload any) ([]byte, error)
	// Unmarshal decodes data into a value a SingletonQueueNamer or
	// Performer type assertion can be attempted against; used by Destroy's
	// singleton-sibling cleanup and by Runner's dispatch.
	Unmarshal(data []byte) (any, error)
}

// Options carries the caller-supplied fields for Enqueue. Zero values mean
// "use the default" except where noted.
type Options struct {
	Priority  int
	RunAt     time.Time
	Queue     string
	FailedAt  time.Time
	LockedAt  time.Time
	LockedBy  string
	Handler   []byte
	Singleton string
}

// WorkerConfig is a worker's identity and the class of jobs it's willing
// to run. Every field is read fresh on each Reserve call, so a caller can
// rebind a WorkerConfig's filters between calls without reconstructing a
// Store.
type WorkerConfig struct {
	Name        string
	ReadAhead   int
	MinPriority *int
	MaxPriority *int
	Queues      []string
}
