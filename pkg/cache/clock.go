package cache

import "time"

// Clock provides time to the store.
// Tests substitute a controllable implementation to exercise expiry.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the current wall-clock time in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
