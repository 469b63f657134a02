// Package timegetter contains the default [domain.TimeGetter] implementation.
package timegetter

import (
	"sync"
	"time"

	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// TimeGetter implements [domain.TimeGetter].
type TimeGetter struct {
	now  func() time.Time
	mu   sync.Mutex
	last bson.Timestamp
}

// NewTimeGetter returns a new implementation of domain.TimeGetter.
func NewTimeGetter(options ...Option) domain.TimeGetter {
	t := &TimeGetter{now: time.Now}
	for _, option := range options {
		option(t)
	}
	return t
}

// GetTime implements [domain.TimeGetter]. Dates are stored with millisecond
// precision, so the result is truncated.
func (t *TimeGetter) GetTime() time.Time {
	return t.now().UTC().Truncate(time.Millisecond)
}

// GetTimestamp implements [domain.TimeGetter]. Timestamps generated in the
// same second are told apart by their increment.
func (t *TimeGetter) GetTimestamp() bson.Timestamp {
	secs := uint32(t.now().Unix())

	t.mu.Lock()
	defer t.mu.Unlock()

	if secs <= t.last.T {
		t.last.I++
	} else {
		t.last = bson.Timestamp{T: secs, I: 1}
	}
	return t.last
}
