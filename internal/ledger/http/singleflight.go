package ledgerhttp

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

type flightGroup struct {
	group singleflight.Group
	// timeout bounds the shared computation; zero leaves it unbounded.
	timeout time.Duration
}

// do collapses concurrent calls sharing key into one computation. The shared
// computation is detached from the leader's cancellation so a caller going
// away never fails the others waiting on the same key.
func (g *flightGroup) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := g.group.DoChan(key, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		if g.timeout > 0 {
			var cancel context.CancelFunc
			shared, cancel = context.WithTimeout(shared, g.timeout)
			defer cancel()
		}
		return fn(shared)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
