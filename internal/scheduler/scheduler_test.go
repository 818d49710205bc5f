// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfosync/nfosync/internal/action"
)

func suspendingAction(typ, event string, started *bool) action.Action {
	return &action.RequestResponse{
		TypeName: typ,
		Event:    event,
		Start:    func(context.Context) error { *started = true; return nil },
	}
}

func atomicAction(typ string, ran *int) action.Action {
	return &action.Atomic{TypeName: typ, Fn: func(context.Context) error { *ran++; return nil }}
}

func TestScheduler_UrgentDrainsBeforePatient(t *testing.T) {
	s := New(nil, zerolog.Nop())
	var order []string

	// Hold the active slot so both lanes queue up behind it; an idle
	// scheduler would run the patient action as soon as it is enqueued.
	started := false
	s.Enqueue(context.Background(), Urgent, suspendingAction("Blocker", "WaitDone", &started))
	require.True(t, started)

	s.Enqueue(context.Background(), Patient, &action.Atomic{TypeName: "PatientOne", Fn: func(context.Context) error {
		order = append(order, "patient")
		return nil
	}})
	s.Enqueue(context.Background(), Urgent, &action.Atomic{TypeName: "UrgentOne", Fn: func(context.Context) error {
		order = append(order, "urgent")
		return nil
	}})
	s.OnEvent(context.Background(), "WaitDone", []byte(`{}`))

	assert.Equal(t, []string{"urgent", "patient"}, order)
	assert.Nil(t, s.Active())
}

func TestScheduler_DedupsBulkActionAcrossQueuesAndActive(t *testing.T) {
	s := New(nil, zerolog.Nop())
	started := false

	active := suspendingAction("SyncAll", "WaitDone", &started)
	s.Enqueue(context.Background(), Urgent, active)
	require.True(t, started)
	require.Equal(t, "SyncAll", s.Active().Type())

	ran := 0
	accepted := s.Enqueue(context.Background(), Urgent, atomicAction("SyncAll", &ran))
	assert.False(t, accepted, "a second SyncAll must be dropped while one is active")

	accepted = s.Enqueue(context.Background(), Patient, atomicAction("SyncAll", &ran))
	assert.False(t, accepted, "a patient-lane SyncAll must also dedup against the active one")
	assert.Equal(t, 0, ran)

	urgent, patient := s.QueueDepths()
	assert.Equal(t, 0, urgent)
	assert.Equal(t, 0, patient)
}

func TestScheduler_NonBulkActionsAreNotDeduped(t *testing.T) {
	s := New(nil, zerolog.Nop())
	started := false
	active := suspendingAction("SyncOne", "VideoLibrary.OnRemove", &started)
	s.Enqueue(context.Background(), Urgent, active)

	ran := 0
	accepted := s.Enqueue(context.Background(), Urgent, atomicAction("SyncOne", &ran))
	assert.True(t, accepted)

	urgent, _ := s.QueueDepths()
	assert.Equal(t, 1, urgent)
}

func TestScheduler_PatientGateBlocksPatientOnly(t *testing.T) {
	open := false
	s := New(func() bool { return open }, zerolog.Nop())

	ran := 0
	s.Enqueue(context.Background(), Patient, atomicAction("ExportAll", &ran))
	assert.Equal(t, 0, ran, "patient action must not run while gate is closed")

	urgentRan := 0
	s.Enqueue(context.Background(), Urgent, atomicAction("SyncOne", &urgentRan))
	assert.Equal(t, 1, urgentRan, "urgent lane is unaffected by the patient gate")

	open = true
	s.Poke(context.Background())
	assert.Equal(t, 1, ran, "poke must re-check the gate and start the queued patient action")
}

func TestScheduler_OnEvent_DeliversOnlyToMatchingAwaitName(t *testing.T) {
	s := New(nil, zerolog.Nop())
	started := false
	active := suspendingAction("ImportOne", "VideoLibrary.OnRemove", &started)
	s.Enqueue(context.Background(), Urgent, active)

	consumed := s.OnEvent(context.Background(), "Player.OnPlay", nil)
	assert.False(t, consumed, "an event not matching Awaiting() must not be consumed")
	assert.Equal(t, "ImportOne", s.Active().Type())

	consumed = s.OnEvent(context.Background(), "VideoLibrary.OnRemove", []byte(`{}`))
	assert.True(t, consumed)
	assert.Nil(t, s.Active())
}

func TestScheduler_Snapshot(t *testing.T) {
	s := New(nil, zerolog.Nop())
	started := false
	s.Enqueue(context.Background(), Urgent, suspendingAction("ExportOne", "VideoLibrary.OnUpdate", &started))
	s.Enqueue(context.Background(), Patient, atomicAction("ExportAll", new(int)))

	snap := s.Snapshot()
	assert.Equal(t, "ExportOne", snap.ActiveType)
	assert.Equal(t, "VideoLibrary.OnUpdate", snap.Awaiting)
	assert.Equal(t, 1, snap.PatientDepth)
	assert.Equal(t, 0, snap.UrgentDepth)
}
