package timegetter

import "time"

// WithClock sets the function used to read the current time.
func WithClock(now func() time.Time) Option {
	return func(t *TimeGetter) {
		t.now = now
	}
}

// Option configures a TimeGetter through the functional options pattern.
type Option func(*TimeGetter)
