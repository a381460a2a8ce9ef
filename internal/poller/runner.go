// internal/poller/runner.go
package poller

import (
	"context"

	"github.com/tamzrod/pressure-bridge/internal/periodic"
)

// Run polls once per interval and emits each Snapshot on out.
// One goroutine. No overlap. No retries.
func (p *Poller) Run(ctx context.Context, out chan<- Snapshot) {
	periodic.Run(ctx, p.cfg.Interval, func(ctx context.Context) {
		select {
		case out <- p.PollOnce():
		case <-ctx.Done():
		}
	})
}
