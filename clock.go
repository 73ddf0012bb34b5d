package delayq

import "time"

// ClockMode selects how Clock.Now resolves "the current time" for run_at,
// locked_at and lock-expiry arithmetic. There is no DB round-trip in any
// mode: all workers sharing a table must have synchronized system clocks.
type ClockMode int

const (
	// ClockUTC returns time.Now().UTC(). This is the default.
	ClockUTC ClockMode = iota
	// ClockLocal returns the system's local wall time.
	ClockLocal
	// ClockNamed returns the wall time in an explicitly named zone.
	ClockNamed
)

// Clock is process-wide configuration for "now" as used by the reservation
// engine. Its mode and zone are fixed at construction and live for the
// process lifetime; callers needing a different zone build a new Clock.
type Clock struct {
	mode ClockMode
	loc  *time.Location
}

// NewUTCClock returns a Clock that reports UTC wall time.
func NewUTCClock() Clock {
	return Clock{mode: ClockUTC}
}

// NewLocalClock returns a Clock that reports the system's local wall time.
func NewLocalClock() Clock {
	return Clock{mode: ClockLocal}
}

// NewNamedClock returns a Clock that reports wall time in the named zone
// (as accepted by time.LoadLocation, e.g. "America/Chicago"). The zone is
// resolved once, at construction, not per call.
func NewNamedClock(zone string) (Clock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Clock{}, err
	}
	return Clock{mode: ClockNamed, loc: loc}, nil
}

// Now returns the current time in this Clock's configured mode.
func (c Clock) Now() time.Time {
	switch c.mode {
	case ClockLocal:
		return time.Now()
	case ClockNamed:
		return time.Now().In(c.loc)
	default:
		return time.Now().UTC()
	}
}
