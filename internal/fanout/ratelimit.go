package fanout

import (
	"errors"
	"time"

	"github.com/joeycumines/go-catrate"
)

// ErrRateLimited is returned by RateLimited.Publish when a delivery is
// suppressed by the configured interval, per spec.md §7's rate_limited
// error kind ("Telemetry/BPM callbacks (when collaborator opts in)").
var ErrRateLimited = errors.New("fanout: rate limited")

// RateLimited wraps a Bus with a minimum-interval gate, resolving
// spec.md §9's open question ("tokens or minimum intervals... use
// minimum interval") using github.com/joeycumines/go-catrate's sliding
// window limiter configured with a single category and a single window.
type RateLimited[T any] struct {
	bus      *Bus[T]
	limiter  *catrate.Limiter
	category string
}

// NewRateLimited wraps bus so Publish only delivers at most once per
// interval. A 2 Hz cap (spec.md §8 scenario 5) is interval=500ms.
func NewRateLimited[T any](bus *Bus[T], interval time.Duration) *RateLimited[T] {
	return &RateLimited[T]{
		bus:      bus,
		limiter:  catrate.NewLimiter(map[time.Duration]int{interval: 1}),
		category: "broadcast",
	}
}

// Publish delivers v to subscribers if the minimum interval has elapsed
// since the last accepted publish, otherwise it drops v and returns
// ErrRateLimited. Message order is preserved among accepted deliveries
// because Publish is only ever called from the single-threaded hot path.
func (r *RateLimited[T]) Publish(v T) error {
	if _, ok := r.limiter.Allow(r.category); !ok {
		return ErrRateLimited
	}
	r.bus.Publish(v)
	return nil
}
