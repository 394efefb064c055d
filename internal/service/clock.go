package service

import "time"

// Clock supplies the wall-clock time to the planning engines. Fiscal year
// and cutoff month defaults derive from it, so it is injected rather than
// read from the system directly.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock pinned to one instant. Test helper.
type FixedClock time.Time

// Now returns the pinned instant.
func (f FixedClock) Now() time.Time {
	return time.Time(f)
}
