package fanout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus[int]()
	var a, b []int
	bus.Subscribe(func(v int) { a = append(a, v) })
	bus.Subscribe(func(v int) { b = append(b, v) })

	bus.Publish(1)
	bus.Publish(2)

	assert.Equal(t, []int{1, 2}, a)
	assert.Equal(t, []int{1, 2}, b)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus[int]()
	var got []int
	id := bus.Subscribe(func(v int) { got = append(got, v) })
	bus.Publish(1)
	bus.Unsubscribe(id)
	bus.Publish(2)

	assert.Equal(t, []int{1}, got)
}

// TestRateLimitedBroadcastScenario exercises spec.md §8 scenario 5: ten
// updates within 100ms should yield no more than one delivered callback,
// with subsequent deliveries spaced at least 500ms apart and order
// preserved.
func TestRateLimitedBroadcastScenario(t *testing.T) {
	bus := NewBus[int]()
	var received []int
	bus.Subscribe(func(v int) { received = append(received, v) })

	rl := NewRateLimited(bus, 500*time.Millisecond)

	accepted := 0
	for i := 0; i < 10; i++ {
		if err := rl.Publish(i); err == nil {
			accepted++
		}
	}
	require.LessOrEqual(t, accepted, 1)
	require.LessOrEqual(t, len(received), 1)

	time.Sleep(550 * time.Millisecond)
	err := rl.Publish(99)
	assert.NoError(t, err)

	require.GreaterOrEqual(t, len(received), 1)
	for i := 1; i < len(received); i++ {
		assert.Less(t, received[i-1], received[i], "delivery order must be preserved")
	}
}

func TestRateLimitedRejectsWithinInterval(t *testing.T) {
	bus := NewBus[int]()
	rl := NewRateLimited(bus, 500*time.Millisecond)

	require.NoError(t, rl.Publish(1))
	err := rl.Publish(2)
	assert.ErrorIs(t, err, ErrRateLimited)
}
