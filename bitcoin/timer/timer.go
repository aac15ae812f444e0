// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package timer

import (
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
)

// Handle identifies recurring timer.
type Handle uint64

// Facility schedules recurring continuations.
type Facility interface {
	// ScheduleRecurring calls fn every interval until the handle is cancelled.
	ScheduleRecurring(interval time.Duration, fn func()) Handle
	// Cancel stops the timer, cancelling unknown handle is a no-op.
	Cancel(handle Handle)
}

// TickerFactory creates ticker for the interval.
type TickerFactory func(interval time.Duration) ticker.Ticker

// TickerFacility is a Facility running each timer in its own goroutine driven by lnd ticker.
type TickerFacility struct {
	newTicker TickerFactory

	mu     sync.Mutex
	last   Handle
	timers map[Handle]*recurring
	wg     sync.WaitGroup
}

type recurring struct {
	ticker ticker.Ticker
	quit   chan struct{}
}

var _ Facility = (*TickerFacility)(nil)

// NewTickerFacility is a constructor for TickerFacility, nil factory means ticker.New.
func NewTickerFacility(newTicker TickerFactory) *TickerFacility {
	if newTicker == nil {
		newTicker = func(interval time.Duration) ticker.Ticker { return ticker.New(interval) }
	}

	return &TickerFacility{
		newTicker: newTicker,
		timers:    make(map[Handle]*recurring),
	}
}

// ScheduleRecurring implements Facility.
func (f *TickerFacility) ScheduleRecurring(interval time.Duration, fn func()) Handle {
	t := &recurring{
		ticker: f.newTicker(interval),
		quit:   make(chan struct{}),
	}

	f.mu.Lock()
	f.last++
	handle := f.last
	f.timers[handle] = t
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		// ticker is not safe for concurrent use, it is driven by this goroutine only.
		t.ticker.Resume()
		defer t.ticker.Stop()

		for {
			select {
			case <-t.ticker.Ticks():
				select {
				case <-t.quit:
					return
				default:
				}

				fn()
			case <-t.quit:
				return
			}
		}
	}()

	return handle
}

// Cancel implements Facility. It is safe to call from any goroutine including the continuation of the timer.
func (f *TickerFacility) Cancel(handle Handle) {
	f.mu.Lock()
	t, ok := f.timers[handle]
	delete(f.timers, handle)
	f.mu.Unlock()

	if !ok {
		return
	}

	close(t.quit)
}

// Active returns number of live timers.
func (f *TickerFacility) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.timers)
}

// Live returns true if the handle is not cancelled.
func (f *TickerFacility) Live(handle Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.timers[handle]

	return ok
}

// Stop cancels all timers and waits for running continuations.
func (f *TickerFacility) Stop() {
	f.mu.Lock()
	handles := make([]Handle, 0, len(f.timers))
	for handle := range f.timers {
		handles = append(handles, handle)
	}
	f.mu.Unlock()

	for _, handle := range handles {
		f.Cancel(handle)
	}

	f.wg.Wait()
}
