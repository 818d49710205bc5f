// SPDX-License-Identifier: MIT

// Package scheduler implements the spec's two-lane action queue (spec
// §4.3): a single active Action slot fed from an urgent FIFO and a
// patient FIFO, with bulk-action dedup and a patient-gate predicate that
// defers patient work while the host reports active playback.
//
// The scheduler is single-threaded cooperative: every exported method
// must be called from the one goroutine the Service event loop owns
// (spec §5). It never spawns a goroutine and never blocks; suspension is
// realized entirely by an Action returning done=false and the scheduler
// returning control to its caller.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nfosync/nfosync/internal/action"
	"github.com/nfosync/nfosync/internal/log"
	"github.com/nfosync/nfosync/internal/metrics"
)

// bulkTypes are deduped at enqueue time (spec invariant 4): at most one
// queued instance of each exists across both queues plus the active slot.
var bulkTypes = map[string]bool{
	"SyncAll":   true,
	"ImportAll": true,
	"ExportAll": true,
}

// Gate reports whether the patient lane is currently allowed to start a
// new Action (spec §4.3's "patient-gate open" predicate). A nil Gate is
// always open.
type Gate func() bool

// Scheduler is the spec §4.3 two-lane queue plus single active slot.
type Scheduler struct {
	urgent  []action.Action
	patient []action.Action
	active  action.Action

	gate   Gate
	logger zerolog.Logger
}

// New constructs an empty Scheduler. gate may be nil (always open).
func New(gate Gate, logger zerolog.Logger) *Scheduler {
	return &Scheduler{gate: gate, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Lane selects which FIFO Enqueue pushes onto.
type Lane int

const (
	Urgent Lane = iota
	Patient
)

func (l Lane) String() string {
	if l == Urgent {
		return "urgent"
	}
	return "patient"
}

// Enqueue pushes act onto lane, unless act's type is a bulk type already
// present in the active slot or either queue (spec invariant 4), then
// drives run_loop. Returns false when the enqueue was dropped as a
// duplicate.
func (s *Scheduler) Enqueue(ctx context.Context, lane Lane, act action.Action) bool {
	if bulkTypes[act.Type()] && s.hasBulk(act.Type()) {
		s.logger.Debug().Str("action", act.Type()).Msg("dropped duplicate bulk action")
		return false
	}

	switch lane {
	case Urgent:
		s.urgent = append(s.urgent, act)
	default:
		s.patient = append(s.patient, act)
	}
	metrics.SetSchedulerQueueDepth(lane.String(), s.laneDepth(lane))

	s.runLoop(ctx)
	return true
}

func (s *Scheduler) laneDepth(lane Lane) int {
	if lane == Urgent {
		return len(s.urgent)
	}
	return len(s.patient)
}

func (s *Scheduler) hasBulk(actionType string) bool {
	if s.active != nil && s.active.Type() == actionType {
		return true
	}
	for _, a := range s.urgent {
		if a.Type() == actionType {
			return true
		}
	}
	for _, a := range s.patient {
		if a.Type() == actionType {
			return true
		}
	}
	return false
}

// Poke re-evaluates run_loop without enqueuing anything, e.g. after a
// gate-affecting event (WaitDone, a settings change) that might let a
// queued patient Action start even though nothing new arrived.
func (s *Scheduler) Poke(ctx context.Context) {
	s.runLoop(ctx)
}

// Active returns the currently active Action, or nil if the scheduler is idle.
func (s *Scheduler) Active() action.Action { return s.active }

// PatientGateOpen reports the current value of the patient-gate predicate.
func (s *Scheduler) PatientGateOpen() bool {
	return s.gate == nil || s.gate()
}

// QueueDepths reports the current urgent/patient queue lengths, for the
// admin status surface.
func (s *Scheduler) QueueDepths() (urgent, patient int) {
	return len(s.urgent), len(s.patient)
}

// runLoop drains the urgent queue, then the patient queue while the gate
// is open, one Action at a time, stopping as soon as an Action suspends
// (spec §4.3 step 1-3).
func (s *Scheduler) runLoop(ctx context.Context) {
	if s.active != nil {
		return
	}

	for len(s.urgent) > 0 {
		act := s.pop(&s.urgent)
		metrics.SetSchedulerQueueDepth(Urgent.String(), len(s.urgent))
		if s.runActive(ctx, act) {
			return
		}
	}

	for len(s.patient) > 0 && s.PatientGateOpen() {
		act := s.pop(&s.patient)
		metrics.SetSchedulerQueueDepth(Patient.String(), len(s.patient))
		if s.runActive(ctx, act) {
			return
		}
	}

	s.active = nil
}

func (s *Scheduler) pop(q *[]action.Action) action.Action {
	act := (*q)[0]
	*q = (*q)[1:]
	return act
}

// runActive assigns act as the active slot and runs it once with a nil
// payload. Returns true if it suspended (the caller should stop draining
// queues), false if it completed so the loop can continue.
func (s *Scheduler) runActive(ctx context.Context, act action.Action) bool {
	s.active = act
	done, err := act.Run(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Str(log.FieldAction, act.Type()).Msg("action failed")
		metrics.IncActionOutcome(act.Type(), "failed")
	}
	if done {
		if err == nil {
			metrics.IncActionOutcome(act.Type(), "done")
		}
		s.active = nil
		return false
	}
	metrics.IncActionOutcome(act.Type(), "suspended")
	return true
}

// OnEvent delivers a host/bus event to the active Action if it is
// awaiting exactly this event name (spec §4.3's "event delivery").
// Events that arrive when no Action is awaiting them, or that don't
// match the name the active Action is suspended on, are dropped: the
// spec (§5) makes no promise of buffering unmatched events. Returns true
// if the event was consumed by the active Action.
func (s *Scheduler) OnEvent(ctx context.Context, name string, payload json.RawMessage) bool {
	if s.active == nil || s.active.Awaiting() != name {
		return false
	}

	done, err := s.active.Run(ctx, payload)
	if err != nil {
		s.logger.Error().Err(err).Str(log.FieldAction, s.active.Type()).Str(log.FieldAwaiting, name).Msg("action failed on resume")
		metrics.IncActionOutcome(s.active.Type(), "failed")
	}
	if done {
		if err == nil {
			metrics.IncActionOutcome(s.active.Type(), "done")
		}
		s.active = nil
		s.runLoop(ctx)
	}
	return true
}

// Status is a JSON-friendly snapshot of the scheduler's state, for the
// admin HTTP surface.
type Status struct {
	ActiveType     string `json:"active_type,omitempty"`
	Awaiting       string `json:"awaiting,omitempty"`
	UrgentDepth    int    `json:"urgent_depth"`
	PatientDepth   int    `json:"patient_depth"`
	PatientGateOff bool   `json:"patient_gate_closed"`
}

// Snapshot returns the current Status for reporting.
func (s *Scheduler) Snapshot() Status {
	st := Status{
		UrgentDepth:    len(s.urgent),
		PatientDepth:   len(s.patient),
		PatientGateOff: !s.PatientGateOpen(),
	}
	if s.active != nil {
		st.ActiveType = s.active.Type()
		st.Awaiting = s.active.Awaiting()
	}
	return st
}

var _ fmt.Stringer = Lane(0)
