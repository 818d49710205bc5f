// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfosync/nfosync/internal/actions"
	"github.com/nfosync/nfosync/internal/bus"
	"github.com/nfosync/nfosync/internal/clock"
	"github.com/nfosync/nfosync/internal/config"
	"github.com/nfosync/nfosync/internal/laststate"
	"github.com/nfosync/nfosync/internal/media"
	"github.com/nfosync/nfosync/internal/sidecar"
	"github.com/nfosync/nfosync/internal/timestamps"
)

// fakeRPC is a minimal media.HostRPC double returning fixed movie details
// for any item, so library-update tests can compute a real checksum.
type fakeRPC struct{}

func (fakeRPC) Call(_ context.Context, method string, _ any) (json.RawMessage, error) {
	switch method {
	case "VideoLibrary.GetMovieDetails":
		return json.RawMessage(`{"moviedetails":{"title":"Arrival","setid":0}}`), nil
	case "VideoLibrary.GetAvailableArt":
		return json.RawMessage(`{"availableart":[]}`), nil
	default:
		return json.RawMessage("{}"), nil
	}
}

func (fakeRPC) FileModTime(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (fakeRPC) Notify(context.Context, string, any) error { return nil }

func newTestService(t *testing.T, mutate func(*config.Config)) *Service {
	t.Helper()

	gateway := media.NewGateway(fakeRPC{}, media.Config{})
	lastKnown, err := laststate.Open(t.TempDir())
	require.NoError(t, err)
	ts, err := timestamps.Open(t.TempDir() + "/timestamps.json")
	require.NoError(t, err)

	deps := &actions.Deps{
		Gateway:    gateway,
		LastKnown:  lastKnown,
		Timestamps: ts,
		Bus:        bus.NewMemoryBus(),
		Sidecar:    sidecar.NewWriter(),
		Clock:      clock.Fixed{T: time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)},
		Logger:     zerolog.Nop(),
	}

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}

	return New(deps, cfg, bus.NewMemoryBus(), zerolog.Nop())
}

func TestHandleLibraryUpdate_FreshAdditionRecordsChecksumWithoutExport(t *testing.T) {
	s := newTestService(t, func(c *config.Config) {
		c.Triggers.ExportOnUpdate = true
	})

	item := media.Item{Type: media.TypeMovie, ID: 1}
	payload, err := json.Marshal(map[string]any{
		"item":        map[string]any{"type": "movie", "id": 1},
		"added":       true,
		"transaction": false,
	})
	require.NoError(t, err)

	s.handleLibraryUpdate(context.Background(), payload)

	_, ok := s.deps.LastKnown.Get(item)
	assert.True(t, ok, "echo suppression must record the checksum")
	assert.Nil(t, s.sched.Active(), "an echoed add must not enqueue ExportOne")
}

func TestHandleLibraryUpdate_NonEchoUpdateEnqueuesExportOne(t *testing.T) {
	t.Chdir(t.TempDir())
	s := newTestService(t, func(c *config.Config) {
		c.Triggers.ExportOnUpdate = true
	})

	payload, err := json.Marshal(map[string]any{
		"item":        map[string]any{"type": "movie", "id": 1},
		"added":       false,
		"transaction": true,
	})
	require.NoError(t, err)

	s.handleLibraryUpdate(context.Background(), payload)

	// ExportOne is Atomic, so it has already run to completion inside
	// Enqueue; the NFO mtime it records (nothing else sets one) shows it ran.
	// The item carries no file path, so the sidecar lands in the working
	// directory, which is a temp dir here.
	assert.Nil(t, s.sched.Active())
	entry, ok := s.deps.LastKnown.Get(media.Item{Type: media.TypeMovie, ID: 1})
	require.True(t, ok)
	assert.True(t, entry.HasNfoMtime, "a non-echo update must export the item")
}

func TestHandleLibraryUpdate_AddedDuringTransactionIsExportedWhenNotIgnored(t *testing.T) {
	t.Chdir(t.TempDir())
	s := newTestService(t, func(c *config.Config) {
		c.Triggers.ExportOnUpdate = true
		c.Triggers.IgnoreAddUpdates = false
	})

	payload, err := json.Marshal(map[string]any{
		"item":        map[string]any{"type": "movie", "id": 1},
		"added":       true,
		"transaction": true,
	})
	require.NoError(t, err)

	s.handleLibraryUpdate(context.Background(), payload)

	assert.Nil(t, s.sched.Active())
	entry, ok := s.deps.LastKnown.Get(media.Item{Type: media.TypeMovie, ID: 1})
	require.True(t, ok)
	assert.True(t, entry.HasNfoMtime, "a genuine add inside a transaction must still export")
}

func TestHandleLibraryUpdate_DisabledTriggerIsIgnored(t *testing.T) {
	s := newTestService(t, func(c *config.Config) {
		c.Triggers.ExportOnUpdate = false
	})

	payload, err := json.Marshal(map[string]any{
		"item":  map[string]any{"type": "movie", "id": 1},
		"added": false,
	})
	require.NoError(t, err)

	s.handleLibraryUpdate(context.Background(), payload)
	assert.Nil(t, s.sched.Active())
}

func TestHandleLibraryUpdate_UnknownMediaTypeIsIgnored(t *testing.T) {
	s := newTestService(t, func(c *config.Config) {
		c.Triggers.ExportOnUpdate = true
	})

	payload, err := json.Marshal(map[string]any{
		"item":  map[string]any{"type": "musicvideo", "id": 1},
		"added": false,
	})
	require.NoError(t, err)

	s.handleLibraryUpdate(context.Background(), payload)
	assert.Nil(t, s.sched.Active())
}

func TestHandlePlayerStop_ArmsPlayWaitWhenWaitTimePositive(t *testing.T) {
	s := newTestService(t, func(c *config.Config) {
		c.Avoidance.WaitTime = 5
	})

	s.handlePlayerStop(context.Background())
	assert.True(t, s.playWait.IsActive())
}

func TestHandlePlayerStop_PokesImmediatelyWhenWaitTimeZero(t *testing.T) {
	s := newTestService(t, func(c *config.Config) {
		c.Avoidance.WaitTime = 0
	})

	s.handlePlayerStop(context.Background())
	assert.False(t, s.playWait.IsActive())
}

func TestPatientGateOpen_ClosedWhilePlayingAndAvoidanceEnabled(t *testing.T) {
	s := newTestService(t, func(c *config.Config) {
		c.Avoidance.IsEnabled = true
	})

	assert.True(t, s.patientGateOpen())
	s.playing.Store(true)
	assert.False(t, s.patientGateOpen())
	s.playing.Store(false)
	assert.True(t, s.patientGateOpen())
}

func TestPatientGateOpen_ClosedWhilePlayWaitActive(t *testing.T) {
	s := newTestService(t, nil)
	s.playWait.Set(context.Background(), 5)
	assert.False(t, s.patientGateOpen())
	s.playWait.Cancel()
	assert.True(t, s.patientGateOpen())
}

func TestOnNotification_SyncOneTriggerRespectsPatientFlag(t *testing.T) {
	t.Chdir(t.TempDir())
	s := newTestService(t, nil)

	payload, err := json.Marshal(map[string]any{"type": "movie", "id": 2, "patient": true})
	require.NoError(t, err)

	s.onNotification(context.Background(), bus.Recv(bus.MethodSyncOne), payload)

	// SyncOne finds no sidecar and no record, so its only step is an Atomic
	// ExportOne: the whole sync completes inside Enqueue.
	assert.Nil(t, s.sched.Active())
	entry, ok := s.deps.LastKnown.Get(media.Item{Type: media.TypeMovie, ID: 2})
	require.True(t, ok)
	assert.True(t, entry.HasNfoMtime, "a patient-lane trigger with an open gate should still run")
}

func TestOnNotification_ScanFinishedHonorsSyncOnScan(t *testing.T) {
	s := newTestService(t, func(c *config.Config) {
		c.Triggers.SyncOnScan = false
	})
	s.onNotification(context.Background(), bus.TopicLibraryOnScanFinished, nil)
	assert.Nil(t, s.sched.Active())

	s2 := newTestService(t, func(c *config.Config) {
		c.Triggers.SyncOnScan = true
	})
	s2.onNotification(context.Background(), bus.TopicLibraryOnScanFinished, nil)
	require.NotNil(t, s2.sched.Active())
	assert.Equal(t, "SyncAll", s2.sched.Active().Type())
}
