package watchdog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-legobot/internal/log"
)

func newEnforcer(action func()) *Watchdog {
	return New(Config{
		Name:      "test-enforcer",
		Period:    time.Second,
		Threshold: 5,
		Mode:      OneShot,
		Logger:    log.Nop(),
	}, action)
}

func TestWatchdog_StartsDisarmed(t *testing.T) {
	var fired int
	w := newEnforcer(func() { fired++ })

	for i := 0; i < 20; i++ {
		assert.False(t, w.Tick())
	}
	assert.Equal(t, 0, fired)
	assert.Equal(t, State{}, w.State())
}

func TestWatchdog_OneShotFiresAfterThreshold(t *testing.T) {
	var fired int
	w := newEnforcer(func() { fired++ })
	w.Arm()

	for i := 1; i <= 5; i++ {
		assert.False(t, w.Tick(), "tick %d is within the window", i)
		assert.Equal(t, i, w.State().Ticks)
	}

	assert.True(t, w.Tick(), "sixth tick exceeds the threshold")
	assert.Equal(t, 1, fired)
	assert.False(t, w.State().Armed)

	// Disarmed: nothing more happens
	for i := 0; i < 10; i++ {
		w.Tick()
	}
	assert.Equal(t, 1, fired)
	assert.Equal(t, uint64(1), w.Fired())
}

func TestWatchdog_ArmResetsCount(t *testing.T) {
	var fired int
	w := newEnforcer(func() { fired++ })
	w.Arm()

	// Re-arm every 3 ticks forever: never fires
	for i := 0; i < 100; i++ {
		if i%3 == 0 {
			w.Arm()
		}
		w.Tick()
	}
	assert.Equal(t, 0, fired)
	assert.True(t, w.State().Armed)
}

func TestWatchdog_RepeatFiresEveryPeriod(t *testing.T) {
	var fired int
	w := New(Config{
		Name:      "test-sustainer",
		Period:    2 * time.Second,
		Threshold: 0,
		Mode:      Repeat,
		Logger:    log.Nop(),
	}, func() { fired++ })

	w.Tick()
	assert.Equal(t, 0, fired, "disarmed sustainer is idle")

	w.Arm()
	for i := 0; i < 7; i++ {
		assert.True(t, w.Tick())
	}
	assert.Equal(t, 7, fired)
	assert.True(t, w.State().Armed)

	w.Disarm()
	w.Tick()
	assert.Equal(t, 7, fired)
}

func TestWatchdog_UpdateRollsBackOnError(t *testing.T) {
	w := newEnforcer(nil)
	w.Arm()
	w.Tick()
	w.Tick()

	err := w.Update(func(s *State) error {
		s.Disarm()
		return errors.New("hardware refused")
	})
	require.Error(t, err)
	assert.Equal(t, State{Armed: true, Ticks: 2}, w.State())

	require.NoError(t, w.Update(func(s *State) error {
		s.Arm()
		return nil
	}))
	assert.Equal(t, State{Armed: true, Ticks: 0}, w.State())
}

func TestWatchdog_ActionSerializedWithUpdate(t *testing.T) {
	var inAction atomic.Bool
	var overlap atomic.Bool

	w := New(Config{Period: time.Millisecond, Threshold: 0, Mode: Repeat, Logger: log.Nop()}, func() {
		inAction.Store(true)
		time.Sleep(100 * time.Microsecond)
		inAction.Store(false)
	})
	w.Arm()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			w.Tick()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = w.Update(func(s *State) error {
				if inAction.Load() {
					overlap.Store(true)
				}
				s.Arm()
				return nil
			})
		}
	}()
	wg.Wait()

	assert.False(t, overlap.Load(), "update observed a running action")
}

func TestWatchdog_RunStop(t *testing.T) {
	var fired atomic.Int32
	w := New(Config{Period: 2 * time.Millisecond, Threshold: 1, Mode: OneShot, Logger: log.Nop()}, func() {
		fired.Add(1)
	})
	w.Arm()

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)

	w.Stop()
	w.Stop() // second stop is a no-op
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestWatchdog_RunContextCancel(t *testing.T) {
	w := newEnforcer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatchdog_Timeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, newEnforcer(nil).Timeout())
}
