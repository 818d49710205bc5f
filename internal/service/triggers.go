// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"

	"github.com/nfosync/nfosync/internal/bus"
	"github.com/nfosync/nfosync/internal/media"
	"github.com/nfosync/nfosync/internal/scheduler"
)

// onNotification implements spec.md §4.4's dispatch table: it stops at
// the first matching rule, starting with resuming the active Action if
// it is awaiting exactly this event name.
func (s *Service) onNotification(ctx context.Context, name string, payload json.RawMessage) {
	if s.sched.OnEvent(ctx, name, payload) {
		return
	}

	switch name {
	case bus.Recv(bus.MethodSyncAll):
		s.enqueueSyncAll(ctx, laneFor(payload), false)
	case bus.Recv(bus.MethodSyncOne):
		s.handleSyncOneTrigger(ctx, payload)
	case bus.Recv(bus.MethodImportAll):
		s.enqueueImportAll(ctx, laneFor(payload))
	case bus.Recv(bus.MethodExportOne):
		s.handleExportOneTrigger(ctx, payload)
	case bus.Recv(bus.MethodExportAll):
		s.enqueueExportAll(ctx, laneFor(payload))
	case bus.Recv(bus.MethodWaitDone):
		s.playWait.Cancel()
		s.sched.Poke(ctx)
	case bus.TopicPlayerOnPlay:
		s.playing.Store(true)
		s.playWait.Cancel()
	case bus.TopicPlayerOnStop:
		s.playing.Store(false)
		s.handlePlayerStop(ctx)
	case bus.TopicLibraryOnUpdate:
		s.handleLibraryUpdate(ctx, payload)
	case bus.TopicLibraryOnScanFinished:
		if s.config().Triggers.SyncOnScan {
			s.enqueueSyncAll(ctx, scheduler.Patient, true)
		}
	}
}

// laneFor reads the {"patient": bool} field the internal bus messages
// carry (spec.md §6's internal message payload table) and maps it to a
// Scheduler lane.
func laneFor(payload json.RawMessage) scheduler.Lane {
	var p struct {
		Patient bool `json:"patient"`
	}
	_ = json.Unmarshal(payload, &p)
	if p.Patient {
		return scheduler.Patient
	}
	return scheduler.Urgent
}

type itemPayload struct {
	Type    media.Type `json:"type"`
	ID      uint32     `json:"id"`
	Patient bool       `json:"patient"`
}

func (s *Service) handleSyncOneTrigger(ctx context.Context, payload json.RawMessage) {
	var p itemPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Warn().Err(err).Msg("malformed SyncOne trigger payload")
		return
	}
	item := media.Item{Type: p.Type, ID: p.ID}
	lane := scheduler.Urgent
	if p.Patient {
		lane = scheduler.Patient
	}
	s.enqueueSyncOne(ctx, lane, item)
}

func (s *Service) handleExportOneTrigger(ctx context.Context, payload json.RawMessage) {
	var p itemPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Warn().Err(err).Msg("malformed ExportOne trigger payload")
		return
	}
	item := media.Item{Type: p.Type, ID: p.ID}
	lane := scheduler.Urgent
	if p.Patient {
		lane = scheduler.Patient
	}
	s.enqueueExportOne(ctx, lane, item)
}

// handlePlayerStop implements spec.md §4.4's Player.OnStop row: arm
// play_wait for avoidance.wait_time minutes, or fire WaitDone immediately
// when avoidance waiting is disabled.
func (s *Service) handlePlayerStop(ctx context.Context) {
	cfg := s.config()
	if cfg.Avoidance.WaitTime > 0 {
		s.playWait.Set(ctx, cfg.Avoidance.WaitTime)
		return
	}
	s.playWait.Cancel()
	s.sched.Poke(ctx)
}

// libraryUpdatePayload is the VideoLibrary.OnUpdate payload spec.md §4.5 names.
type libraryUpdatePayload struct {
	Item struct {
		Type media.Type `json:"type"`
		ID   uint32     `json:"id"`
	} `json:"item"`
	Added       bool `json:"added"`
	Transaction bool `json:"transaction"`
}

// handleLibraryUpdate implements spec.md §4.5 exactly: a refresh-caused
// echo or fresh addition marks the checksum as already-seen instead of
// exporting; any other update of a known media type triggers an urgent
// ExportOne.
func (s *Service) handleLibraryUpdate(ctx context.Context, payload json.RawMessage) {
	if !s.config().Triggers.ExportOnUpdate {
		return
	}

	var p libraryUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Warn().Err(err).Msg("malformed VideoLibrary.OnUpdate payload")
		return
	}

	switch p.Item.Type {
	case media.TypeMovie, media.TypeTVShow, media.TypeEpisode:
	default:
		return
	}
	item := media.Item{Type: p.Item.Type, ID: p.Item.ID}

	if p.Added && (s.config().Triggers.IgnoreAddUpdates || !p.Transaction) {
		info := s.deps.Gateway.NewInfo(item)
		checksum, err := info.Checksum(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Str("item", item.String()).Msg("failed to compute checksum for update echo suppression")
			return
		}
		s.deps.LastKnown.SetChecksum(item, checksum)
		return
	}

	s.enqueueExportOne(ctx, scheduler.Urgent, item)
}
