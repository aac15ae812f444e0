// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package timer_test

import (
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/runelaunch/bitcoin/timer"
)

func TestTickerFacility(t *testing.T) {
	var (
		mu      sync.Mutex
		tickers []*ticker.Force
	)
	facility := timer.NewTickerFacility(func(interval time.Duration) ticker.Ticker {
		mu.Lock()
		defer mu.Unlock()

		force := ticker.NewForce(interval)
		tickers = append(tickers, force)

		return force
	})
	defer facility.Stop()

	fired := make(chan timer.Handle, 10)
	var handle timer.Handle
	handle = facility.ScheduleRecurring(time.Hour, func() { fired <- handle })

	other := facility.ScheduleRecurring(time.Hour, func() {})
	require.NotEqual(t, handle, other)
	require.Equal(t, 2, facility.Active())

	t.Run("fires on every tick", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			tickers[0].Force <- time.Now()
			select {
			case got := <-fired:
				require.Equal(t, handle, got)
			case <-time.After(time.Second):
				t.Fatal("timer did not fire")
			}
		}

		require.True(t, facility.Live(handle))
	})

	t.Run("cancel from continuation", func(t *testing.T) {
		done := make(chan struct{})
		var self timer.Handle
		self = facility.ScheduleRecurring(time.Hour, func() {
			facility.Cancel(self)
			close(done)
		})

		mu.Lock()
		force := tickers[len(tickers)-1]
		mu.Unlock()

		force.Force <- time.Now()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timer did not fire")
		}

		require.False(t, facility.Live(self))
		require.Equal(t, 2, facility.Active())
	})

	t.Run("cancel", func(t *testing.T) {
		facility.Cancel(other)
		facility.Cancel(other)
		require.False(t, facility.Live(other))
		require.Equal(t, 1, facility.Active())
	})

	facility.Stop()
	require.Zero(t, facility.Active())
}

func TestTickerFacilityCancelWhileTicking(t *testing.T) {
	facility := timer.NewTickerFacility(nil)

	fired := make(chan struct{}, 100)
	handles := make([]timer.Handle, 0, 4)
	for i := 0; i < 4; i++ {
		handles = append(handles, facility.ScheduleRecurring(time.Millisecond, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		}))
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	facility.Cancel(handles[0])
	facility.Cancel(handles[1])
	require.Equal(t, 2, facility.Active())

	facility.Stop()
	require.Zero(t, facility.Active())

	for len(fired) > 0 {
		<-fired
	}
	time.Sleep(5 * time.Millisecond)
	require.Empty(t, fired)
}
