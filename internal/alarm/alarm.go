// SPDX-License-Identifier: MIT

// Package alarm implements named, cancellable, optionally-looping
// single-shot timers that rebroadcast a bus message when they fire.
//
// The original addon armed a Kodi AlarmClock builtin and observed its own
// fire via onNotification, because Kodi's only generic timer primitive is
// that builtin. This spec's host RPC surface names no equivalent timer
// method, so the timer here fires directly via time.AfterFunc/time.Ticker
// and publishes straight to the bus; every other observable of the
// original contract (name, cancel, loop, is_active) is preserved.
package alarm

import (
	"context"
	"sync"
	"time"

	"github.com/nfosync/nfosync/internal/bus"
)

// Alarm is a named timer that publishes message (with payload, if any)
// onto b when it fires.
type Alarm struct {
	name    string
	b       bus.Bus
	message string
	payload func() any
	loop    bool

	mu      sync.Mutex
	timer   *time.Timer
	ticker  *time.Ticker
	stop    chan struct{}
	minutes int
}

// New constructs an Alarm. payload may be nil if the message carries no data.
func New(name string, b bus.Bus, message string, payload func() any, loop bool) *Alarm {
	return &Alarm{name: name, b: b, message: message, payload: payload, loop: loop}
}

// Set cancels any prior instance, then arms the alarm to fire after
// minutes, repeating if the alarm was constructed with loop=true. A
// non-positive minutes is equivalent to Cancel.
func (a *Alarm) Set(ctx context.Context, minutes int) {
	a.Cancel()
	if minutes <= 0 {
		return
	}

	a.mu.Lock()
	a.minutes = minutes
	stop := make(chan struct{})
	a.stop = stop
	d := time.Duration(minutes) * time.Minute
	if a.loop {
		a.ticker = time.NewTicker(d)
		ticker := a.ticker
		go a.loopFire(ctx, ticker, stop)
	} else {
		a.timer = time.AfterFunc(d, func() { a.fire(ctx); a.deactivateSingleShot() })
	}
	a.mu.Unlock()
}

func (a *Alarm) loopFire(ctx context.Context, ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ticker.C:
			a.fire(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			// The context Set armed this loop with was canceled (service
			// shutdown): stop even if nobody calls Cancel explicitly.
			return
		}
	}
}

func (a *Alarm) deactivateSingleShot() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loop {
		a.minutes = 0
	}
}

func (a *Alarm) fire(ctx context.Context) {
	var payload any
	if a.payload != nil {
		payload = a.payload()
	}
	_ = a.b.Publish(ctx, a.message, bus.Message{Method: a.message, Payload: marshalBestEffort(payload)})
}

// Cancel stops the alarm and deactivates it.
func (a *Alarm) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.ticker != nil {
		a.ticker.Stop()
		a.ticker = nil
	}
	if a.stop != nil {
		close(a.stop)
		a.stop = nil
	}
	a.minutes = 0
}

// IsActive reports whether the alarm is currently armed.
func (a *Alarm) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.minutes > 0
}

// Name returns the alarm's configured name.
func (a *Alarm) Name() string {
	return a.name
}
