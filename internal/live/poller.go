// Package live provides the polling live-query loop used where the backing
// store offers no change feed: fetch immediately, then refetch on a fixed
// interval until the context is cancelled.
package live

import (
	"context"
	"time"

	"github.com/bloodlink/internal/logger"
)

// DefaultInterval is the gap between poll fetches.
const DefaultInterval = 5 * time.Second

// Fetch performs one refresh. Errors are logged and the loop continues; a
// poll cycle is never retried within its interval.
type Fetch func(ctx context.Context) error

// Run polls: one immediate fetch, then one every interval until ctx is
// cancelled. Cancellation is checked before each fetch and again before each
// reschedule, so at most one in-flight fetch completes after cancel and no
// further fetch is ever scheduled. Run blocks; callers start it in a
// goroutine and cancel the context to unsubscribe.
func Run(ctx context.Context, name string, interval time.Duration, fetch Fetch) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if ctx.Err() != nil {
			return
		}
		if err := fetch(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("live %s: fetch: %v", name, err)
		}

		if ctx.Err() != nil {
			return
		}
		timer.Reset(interval)
	}
}
