package delayq

import (
	"fmt"
	"strings"
	"time"
)

// paramStyle renders a backend's placeholder syntax: "$" for PostgreSQL's
// numbered $1, $2, ..., "?" for MySQL/MSSQL/generic positional markers.
type paramStyle struct {
	dollar bool
	n      int
}

func (p *paramStyle) next() string {
	p.n++
	if p.dollar {
		return fmt.Sprintf("$%d", p.n)
	}
	return "?"
}

// eligibilityParams bundles the inputs to the eligibility predicate Reserve
// evaluates against every row: due and unlocked (or stale-locked past
// MaxRunTime), or already locked by this worker. Each field is read fresh
// on every Reserve call so a caller can rebind a WorkerConfig's filters
// between calls.
type eligibilityParams struct {
	Now         time.Time
	WorkerName  string
	MaxRunTime  time.Duration
	MinPriority *int
	MaxPriority *int
	Queues      []string
}

// buildEligibility renders the WHERE-clause body (without the leading
// "WHERE") for the eligibility predicate, including a singleton-exclusion
// derived-table subquery that drops a row if another row in the same
// singleton class is already locked (and not stale) by someone else. The
// subquery form is used by every backend, not just MySQL, since MySQL
// rejects a direct self-select against a table it's concurrently updating.
// Args are returned in the exact order their placeholders appear in the
// returned SQL.
func buildEligibility(p *paramStyle, table string, ep eligibilityParams) (string, []any) {
	var b strings.Builder
	var args []any

	cutoff := ep.Now.Add(-ep.MaxRunTime)

	b.WriteString("failed_at IS NULL")

	b.WriteString(" AND ((run_at <= ")
	b.WriteString(p.next())
	args = append(args, ep.Now)
	b.WriteString(" AND (locked_at IS NULL OR locked_at < ")
	b.WriteString(p.next())
	args = append(args, cutoff)
	b.WriteString(")) OR locked_by = ")
	b.WriteString(p.next())
	args = append(args, ep.WorkerName)
	b.WriteString(")")

	if ep.MinPriority != nil {
		b.WriteString(" AND priority >= ")
		b.WriteString(p.next())
		args = append(args, *ep.MinPriority)
	}
	if ep.MaxPriority != nil {
		b.WriteString(" AND priority <= ")
		b.WriteString(p.next())
		args = append(args, *ep.MaxPriority)
	}

	if len(ep.Queues) > 0 {
		placeholders := make([]string, len(ep.Queues))
		for i, q := range ep.Queues {
			placeholders[i] = p.next()
			args = append(args, q)
		}
		b.WriteString(" AND queue IN (")
		b.WriteString(strings.Join(placeholders, ", "))
		b.WriteString(")")
	}

	b.WriteString(" AND (singleton IS NULL OR singleton NOT IN (")
	b.WriteString("SELECT singleton FROM (")
	b.WriteString("SELECT DISTINCT singleton FROM ")
	b.WriteString(table)
	b.WriteString(" WHERE run_at <= ")
	b.WriteString(p.next())
	args = append(args, ep.Now)
	b.WriteString(" AND singleton IS NOT NULL AND locked_at IS NOT NULL AND locked_at >= ")
	b.WriteString(p.next())
	args = append(args, cutoff)
	b.WriteString(" AND locked_by <> ")
	b.WriteString(p.next())
	args = append(args, ep.WorkerName)
	b.WriteString(" AND failed_at IS NULL")
	b.WriteString(") AS temp))")

	return b.String(), args
}
