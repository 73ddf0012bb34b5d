package delayq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEligibilityDollarPlaceholders(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	where, args := buildEligibility(&paramStyle{dollar: true}, "delayed_jobs", eligibilityParams{
		Now:        now,
		WorkerName: "worker-1",
		MaxRunTime: time.Hour,
	})

	require.Contains(t, where, "$1")
	require.Contains(t, where, "$2")
	require.Contains(t, where, "$3")
	require.NotContains(t, where, "?")
	assert.Equal(t, []any{now, now.Add(-time.Hour), "worker-1", now, now.Add(-time.Hour), "worker-1"}, args)
}

func TestBuildEligibilityQuestionMarkPlaceholders(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	where, args := buildEligibility(&paramStyle{dollar: false}, "delayed_jobs", eligibilityParams{
		Now:        now,
		WorkerName: "worker-1",
		MaxRunTime: time.Hour,
	})

	assert.NotContains(t, where, "$")
	assert.Equal(t, 6, len(args))
}

func TestBuildEligibilityIncludesPriorityBounds(t *testing.T) {
	min := 1
	max := 5
	where, args := buildEligibility(&paramStyle{dollar: true}, "delayed_jobs", eligibilityParams{
		Now:         time.Now(),
		WorkerName:  "w",
		MaxRunTime:  time.Minute,
		MinPriority: &min,
		MaxPriority: &max,
	})

	assert.Contains(t, where, "priority >= $4")
	assert.Contains(t, where, "priority <= $5")
	assert.Contains(t, args, min)
	assert.Contains(t, args, max)
}

func TestBuildEligibilityIncludesQueueFilter(t *testing.T) {
	where, args := buildEligibility(&paramStyle{dollar: true}, "delayed_jobs", eligibilityParams{
		Now:        time.Now(),
		WorkerName: "w",
		MaxRunTime: time.Minute,
		Queues:     []string{"default", "mailers"},
	})

	assert.Contains(t, where, "queue IN ($4, $5)")
	assert.Contains(t, args, "default")
	assert.Contains(t, args, "mailers")
}

func TestBuildEligibilityAlwaysIncludesSingletonSubquery(t *testing.T) {
	where, _ := buildEligibility(&paramStyle{dollar: true}, "delayed_jobs", eligibilityParams{
		Now:        time.Now(),
		WorkerName: "w",
		MaxRunTime: time.Minute,
	})

	assert.Contains(t, where, "singleton NOT IN")
	assert.Contains(t, where, "AS temp")
	assert.Contains(t, where, "locked_by <>")
}

func TestBuildEligibilityFailedAtAlwaysExcluded(t *testing.T) {
	where, _ := buildEligibility(&paramStyle{dollar: false}, "delayed_jobs", eligibilityParams{
		Now:        time.Now(),
		WorkerName: "w",
		MaxRunTime: time.Minute,
	})

	require.True(t, len(where) > 0)
	assert.Contains(t, where, "failed_at IS NULL")
}
