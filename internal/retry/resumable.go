package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ResumableDownloadPolicy returns the exponential-backoff policy the
// resumable download lifecycle uses for connect/read retries (section
// 4.6(b)): base 2s, doubling, capped at 5 attempts total.
//
// This is deliberately a separate policy from Backoff above: Backoff's
// 1s/10%-jitter sequence is tuned for fast-reconnecting long-lived
// operations (WebSocket reconnection), while resumable downloads retry a
// bounded number of times against a single destination file and want a
// third-party-vetted implementation wired to a context deadline.
func ResumableDownloadPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 2 * time.Second
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not by elapsed time

	return backoff.WithContext(backoff.WithMaxRetries(eb, 4), ctx)
	// WithMaxRetries(eb, 4) allows the initial attempt plus 4 retries: 5
	// attempts total, matching "max 5 attempts".
}

// RunResumable executes op, retrying per ResumableDownloadPolicy until it
// succeeds, the attempt cap is reached, or ctx is cancelled. notify, if
// non-nil, is called before each retry sleep with the error that triggered
// it and the delay about to be taken, for wiring into the event bus or
// logger.
func RunResumable(ctx context.Context, op func() error, notify func(err error, wait time.Duration)) error {
	policy := ResumableDownloadPolicy(ctx)
	if notify == nil {
		return backoff.Retry(op, policy)
	}
	return backoff.RetryNotify(op, policy, notify)
}
