package usecase

import (
	"sync"
	"time"
)

// durationGuard bounds a recording that never receives a release. It ticks
// alongside active capture and forces a stop once the configured maximum
// elapses. cancel is idempotent and must be called on every manual stop so
// a stale guard cannot fire into a later session.
type durationGuard struct {
	stop chan struct{}
	once sync.Once
}

func startDurationGuard(clock func() time.Time, max, tick time.Duration, expire func()) *durationGuard {
	g := &durationGuard{stop: make(chan struct{})}
	started := clock()

	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-g.stop:
				return
			case <-ticker.C:
				if clock().Sub(started) >= max {
					expire()
					return
				}
			}
		}
	}()

	return g
}

func (g *durationGuard) cancel() {
	g.once.Do(func() { close(g.stop) })
}
