// SPDX-License-Identifier: MIT

package action

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomic_RunsOnceToCompletion(t *testing.T) {
	calls := 0
	a := &Atomic{TypeName: "Noop", Fn: func(context.Context) error {
		calls++
		return nil
	}}

	assert.Equal(t, "Noop", a.Type())
	assert.Equal(t, "", a.Awaiting())

	done, err := a.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 1, calls)
}

func TestAtomic_PropagatesError(t *testing.T) {
	want := errors.New("boom")
	a := &Atomic{TypeName: "Noop", Fn: func(context.Context) error { return want }}

	done, err := a.Run(context.Background(), nil)
	assert.True(t, done)
	assert.ErrorIs(t, err, want)
}

func TestRequestResponse_SuspendsThenResumesOnMatch(t *testing.T) {
	started := false
	a := &RequestResponse{
		TypeName: "ImportOne",
		Event:    "VideoLibrary.OnRemove",
		Start:    func(context.Context) error { started = true; return nil },
		Match: func(payload json.RawMessage) bool {
			return string(payload) == `{"id":1}`
		},
	}

	assert.Equal(t, "", a.Awaiting())

	done, err := a.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, done)
	assert.True(t, started)
	assert.Equal(t, "VideoLibrary.OnRemove", a.Awaiting())

	// A non-matching event leaves it suspended on the same name.
	done, err = a.Run(context.Background(), []byte(`{"id":2}`))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "VideoLibrary.OnRemove", a.Awaiting())

	done, err = a.Run(context.Background(), []byte(`{"id":1}`))
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "", a.Awaiting())
}

func TestRequestResponse_StartFailureCompletesWithError(t *testing.T) {
	want := errors.New("host unreachable")
	a := &RequestResponse{
		TypeName: "ExportOne",
		Event:    "VideoLibrary.OnUpdate",
		Start:    func(context.Context) error { return want },
	}

	done, err := a.Run(context.Background(), nil)
	assert.True(t, done)
	assert.ErrorIs(t, err, want)
	assert.Equal(t, "", a.Awaiting())
}

func TestPhased_RunsSubActionsInOrderAcrossSuspension(t *testing.T) {
	var ran []string
	makeAtomic := func(name string) Action {
		return &Atomic{TypeName: name, Fn: func(context.Context) error {
			ran = append(ran, name)
			return nil
		}}
	}
	suspendOnce := &RequestResponse{
		TypeName: "WaitStep",
		Event:    "WaitDone",
		Start:    func(context.Context) error { ran = append(ran, "wait-start"); return nil },
	}

	p := &Phased{
		TypeName: "SyncAll",
		Next:     Seq(makeAtomic("clean"), suspendOnce, makeAtomic("export")),
	}

	done, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, done, "should suspend inside the second sub-action")
	assert.Equal(t, "WaitDone", p.Awaiting())
	assert.Equal(t, []string{"clean", "wait-start"}, ran)

	done, err = p.Run(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, []string{"clean", "wait-start", "export"}, ran)
	assert.Equal(t, "", p.Awaiting())
}

func TestPhased_TranslatesSubActionError(t *testing.T) {
	cleanupCalls := 0
	failing := &Atomic{TypeName: "Export", Fn: func(context.Context) error {
		return errors.New("disk full")
	}}

	p := &Phased{
		TypeName: "ExportAll",
		Next:     Seq(failing),
		OnException: func(err error) error {
			return NewError(32043, "export failed", err)
		},
		Cleanup: func() { cleanupCalls++ },
	}

	done, err := p.Run(context.Background(), nil)
	assert.True(t, done)

	var actionErr *Error
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, 32043, actionErr.Code)
	assert.Equal(t, 1, cleanupCalls)
}

func TestPhased_StopsEarlyWhenCanceled(t *testing.T) {
	calls := 0
	p := &Phased{
		TypeName: "SyncAll",
		Next: Seq(&Atomic{TypeName: "step", Fn: func(context.Context) error {
			calls++
			return nil
		}}),
		Canceled: func() bool { return true },
	}

	done, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 0, calls, "a cancellation observed before the first sub-action must skip it")
}

func TestChain_AdvancesAcrossGenerators(t *testing.T) {
	var order []string
	g1 := Seq(&Atomic{TypeName: "a", Fn: func(context.Context) error { order = append(order, "a"); return nil }})
	g2 := Seq(&Atomic{TypeName: "b", Fn: func(context.Context) error { order = append(order, "b"); return nil }})

	next := Chain(g1, g2)
	p := &Phased{TypeName: "chained", Next: next}

	done, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestLazy_BuildsOnce(t *testing.T) {
	builds := 0
	gen := Lazy(func(context.Context) ([]Action, error) {
		builds++
		return []Action{&Atomic{TypeName: "x", Fn: func(context.Context) error { return nil }}}, nil
	})

	if _, ok, err := gen(context.Background()); err != nil || !ok {
		t.Fatalf("expected first item, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := gen(context.Background()); err != nil || ok {
		t.Fatalf("expected exhaustion, got ok=%v err=%v", ok, err)
	}
	assert.Equal(t, 1, builds)
}
