package sync

import (
	"time"

	"github.com/cenkalti/backoff"
)

// retrySchedule spaces out cycle retries after failures: exponential growth
// from one second, capped at five minutes, never giving up.
type retrySchedule struct {
	b *backoff.ExponentialBackOff
}

func newRetrySchedule() *retrySchedule {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0
	b.Reset()
	return &retrySchedule{b: b}
}

func (r *retrySchedule) next() time.Duration {
	return r.b.NextBackOff()
}

func (r *retrySchedule) reset() {
	r.b.Reset()
}
