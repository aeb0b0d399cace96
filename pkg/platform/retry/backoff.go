// Package retry holds the capped exponential backoff shared by the
// delivery and sync workers.
package retry

import "time"

// Backoff grows Base * 2^(attempt-1) up to Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before the next attempt after attempt failures.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return b.Base
	}
	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.Max || delay <= 0 {
			return b.Max
		}
	}
	return delay
}
