// internal/periodic/periodic.go
package periodic

import (
	"context"
	"time"
)

// Run calls fn once per interval until ctx is done.
// One goroutine per task. No overlap: a slow fn delays the next tick, it
// never runs concurrently with itself. Cancellation is observed only
// between calls, so fn always completes the tick it started.
func Run(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			fn(ctx)
		}
	}
}
