// SPDX-License-Identifier: MIT

// Package progress abstracts the bulk-action progress indicator. The
// original addon drove a foreground Kodi dialog; this engine has no GUI,
// so the production Sink surfaces progress through structured logs and an
// atomic cancellation flag; the admin HTTP API has no endpoint that sets it.
package progress

import "sync/atomic"

// Sink receives progress updates from a bulk Action and reports whether
// the operator has requested cancellation.
type Sink interface {
	// Create begins a new progress report with the given heading.
	Create(heading string)
	// Update reports percent-complete [0,100] and the current stage text.
	Update(percent int, heading, message string)
	// Close ends the progress report.
	Close()
	// IsCanceled reports whether the user canceled the in-flight bulk action.
	IsCanceled() bool
}

// NoOp is a Sink that does nothing and is never canceled; used for
// background-triggered actions (periodic, scheduled, event-driven).
type NoOp struct{}

func (NoOp) Create(string)                   {}
func (NoOp) Update(int, string, string)       {}
func (NoOp) Close()                           {}
func (NoOp) IsCanceled() bool                 { return false }

// Logging is a Sink that reports progress via structured logs and exposes
// a Cancel method an admin endpoint can call to request cancellation.
type Logging struct {
	onUpdate  func(percent int, heading, message string)
	canceled  atomic.Bool
}

// NewLogging constructs a Logging sink. onUpdate may be nil.
func NewLogging(onUpdate func(percent int, heading, message string)) *Logging {
	return &Logging{onUpdate: onUpdate}
}

func (l *Logging) Create(heading string) {
	if l.onUpdate != nil {
		l.onUpdate(0, heading, "")
	}
}

func (l *Logging) Update(percent int, heading, message string) {
	if l.onUpdate != nil {
		l.onUpdate(percent, heading, message)
	}
}

func (l *Logging) Close() {
	if l.onUpdate != nil {
		l.onUpdate(100, "", "")
	}
}

func (l *Logging) IsCanceled() bool {
	return l.canceled.Load()
}

// Cancel requests cancellation of the bulk action owning this sink.
func (l *Logging) Cancel() {
	l.canceled.Store(true)
}
