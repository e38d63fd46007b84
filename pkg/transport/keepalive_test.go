package transport

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventuallyTick = time.Millisecond

// fakeTicker delivers ticks on demand.
type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()                  { t.stopped.Store(true) }

// fakeClock hands out fakeTickers and records them for the test.
type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) Now() time.Time { return time.Now() }

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

// tick fires the most recently created ticker, waiting for the timer
// goroutine to register one first.
func (c *fakeClock) tick() {
	var t *fakeTicker
	for t == nil {
		c.mu.Lock()
		if n := len(c.tickers); n > 0 {
			t = c.tickers[n-1]
		}
		c.mu.Unlock()
		if t == nil {
			time.Sleep(eventuallyTick)
		}
	}
	t.ch <- time.Now()
}

// ticker returns the i-th created ticker, waiting for the timer
// goroutine to register it first.
func (c *fakeClock) ticker(i int) *fakeTicker {
	for {
		c.mu.Lock()
		if len(c.tickers) > i {
			t := c.tickers[i]
			c.mu.Unlock()
			return t
		}
		c.mu.Unlock()
		time.Sleep(eventuallyTick)
	}
}

func TestKeepAlive_PingsOnTick(t *testing.T) {
	clock := &fakeClock{}
	ka := NewKeepAlive(clock, time.Second)
	t.Cleanup(ka.StopAll)

	var pings atomic.Int32
	ka.Start(testSessionID, func() bool {
		pings.Add(1)
		return true
	})
	require.Equal(t, 1, ka.Active())

	clock.tick()
	clock.tick()

	require.Eventually(t, func() bool { return pings.Load() == 2 },
		time.Second, eventuallyTick)
	assert.Equal(t, 1, ka.Active(), "a healthy timer keeps running")
}

func TestKeepAlive_SelfStopsWhenPingFails(t *testing.T) {
	clock := &fakeClock{}
	ka := NewKeepAlive(clock, time.Second)
	t.Cleanup(ka.StopAll)

	ka.Start(testSessionID, func() bool { return false })
	clock.tick()

	require.Eventually(t, func() bool { return ka.Active() == 0 },
		time.Second, eventuallyTick)
	require.Eventually(t, func() bool { return clock.ticker(0).stopped.Load() },
		time.Second, eventuallyTick)
}

func TestKeepAlive_Stop(t *testing.T) {
	clock := &fakeClock{}
	ka := NewKeepAlive(clock, time.Second)

	ka.Start(testSessionID, func() bool { return true })
	ka.Stop(testSessionID)
	assert.Equal(t, 0, ka.Active())

	// Stopping an absent id is a no-op.
	ka.Stop(testSessionID)
	ka.Stop("never-started")
}

func TestKeepAlive_RestartReplacesTimer(t *testing.T) {
	clock := &fakeClock{}
	ka := NewKeepAlive(clock, time.Second)
	t.Cleanup(ka.StopAll)

	var firstPings, secondPings atomic.Int32
	ka.Start(testSessionID, func() bool { firstPings.Add(1); return true })
	ka.Start(testSessionID, func() bool { secondPings.Add(1); return true })

	require.Equal(t, 1, ka.Active(), "restart never leaves two timers for one id")

	// The first timer's goroutine was cancelled; its ticker is stopped.
	require.Eventually(t, func() bool { return clock.ticker(0).stopped.Load() },
		time.Second, eventuallyTick)

	clock.tick()
	require.Eventually(t, func() bool { return secondPings.Load() == 1 },
		time.Second, eventuallyTick)
	assert.Zero(t, firstPings.Load())
}

func TestKeepAlive_StopAll(t *testing.T) {
	clock := &fakeClock{}
	ka := NewKeepAlive(clock, time.Second)

	ka.Start("a", func() bool { return true })
	ka.Start("b", func() bool { return true })
	require.Equal(t, 2, ka.Active())

	ka.StopAll()
	assert.Equal(t, 0, ka.Active())
}

func TestNewKeepAlive_Defaults(t *testing.T) {
	ka := NewKeepAlive(nil, 0)
	require.NotNil(t, ka)
	assert.Equal(t, DefaultKeepAliveInterval, ka.interval)
}
