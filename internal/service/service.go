// SPDX-License-Identifier: MIT

// Package service implements the spec.md §4.4 long-lived event loop: it
// receives host/internal bus notifications, applies the start/update/
// scan/periodic/scheduled triggers, maintains the periodic and
// play-avoidance alarms, and drives the Scheduler.
//
// Grounded in spec.md §4.4-§4.6 directly; the goroutine-supervision
// pattern (schedule ticker, bus-subscription fan-in, event loop) follows the
// teacher's internal/daemon.Manager error-channel approach, generalized
// with golang.org/x/sync/errgroup per SPEC_FULL.md's domain stack.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nfosync/nfosync/internal/actions"
	"github.com/nfosync/nfosync/internal/alarm"
	"github.com/nfosync/nfosync/internal/bus"
	"github.com/nfosync/nfosync/internal/config"
	"github.com/nfosync/nfosync/internal/log"
	"github.com/nfosync/nfosync/internal/media"
	"github.com/nfosync/nfosync/internal/progress"
	"github.com/nfosync/nfosync/internal/scheduler"
)

// scheduleCheckInterval is the host wait-loop re-check cadence spec.md
// §4.4 step 6 describes as "every ~60s".
const scheduleCheckInterval = 60 * time.Second

type inboundEvent struct {
	name    string
	payload json.RawMessage
}

// Service is the long-lived event loop described in spec.md §4.4.
type Service struct {
	deps *actions.Deps
	bus  bus.Bus

	cfg atomic.Pointer[config.Config]

	sched *scheduler.Scheduler

	periodicTrigger *alarm.Alarm
	playWait        *alarm.Alarm
	playing         atomic.Bool

	logger zerolog.Logger

	mailbox chan inboundEvent
}

// New constructs a Service. cfg.Sync/Export/... feed actions.Deps.Config;
// the rest of cfg (triggers, avoidance, periodic, scheduled, ui) is owned
// here.
func New(deps *actions.Deps, cfg config.Config, b bus.Bus, logger zerolog.Logger) *Service {
	s := &Service{
		deps:    deps,
		bus:     b,
		logger:  logger.With().Str("component", "service").Logger(),
		mailbox: make(chan inboundEvent, 256),
	}
	s.cfg.Store(&cfg)

	s.sched = scheduler.New(s.patientGateOpen, s.logger)
	s.periodicTrigger = alarm.New("periodic_trigger", b, bus.Recv(bus.MethodSyncAll), func() any {
		return map[string]any{"patient": true}
	}, true)
	s.playWait = alarm.New("play_wait", b, bus.Recv(bus.MethodWaitDone), nil, false)

	return s
}

func (s *Service) config() config.Config {
	return *s.cfg.Load()
}

// patientGateOpen implements spec.md §4.3's patient-gate predicate.
func (s *Service) patientGateOpen() bool {
	cfg := s.config()
	if cfg.Avoidance.IsEnabled && s.playing.Load() {
		return false
	}
	return !s.playWait.IsActive()
}

// Run subscribes to every topic the Service dispatches on, executes the
// spec.md §4.4 start-up sequence, then blocks processing inbound events
// (serialized through a single mailbox channel, per spec.md §5's
// non-reentrant-ingress requirement) until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	topics := []string{
		bus.Recv(bus.MethodSyncAll),
		bus.Recv(bus.MethodSyncOne),
		bus.Recv(bus.MethodImportAll),
		bus.Recv(bus.MethodExportOne),
		bus.Recv(bus.MethodExportAll),
		bus.Recv(bus.MethodWaitDone),
		bus.TopicLibraryOnUpdate,
		bus.TopicLibraryOnRemove,
		bus.TopicLibraryOnCleanFinish,
		bus.TopicLibraryOnScanFinished,
		bus.TopicPlayerOnPlay,
		bus.TopicPlayerOnStop,
	}

	g, ctx := errgroup.WithContext(ctx)

	var subs []bus.Subscriber
	for _, topic := range topics {
		sub, err := s.bus.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		subs = append(subs, sub)

		topic := topic
		sub := sub
		g.Go(func() error {
			for {
				select {
				case msg, ok := <-sub.C():
					if !ok {
						return nil
					}
					select {
					case s.mailbox <- inboundEvent{name: topic, payload: msg.Payload}:
					case <-ctx.Done():
						return nil
					}
				case <-ctx.Done():
					return nil
				}
			}
		})
	}
	defer func() {
		for _, sub := range subs {
			_ = sub.Close()
		}
	}()

	if err := s.startup(ctx); err != nil {
		return fmt.Errorf("service startup: %w", err)
	}

	g.Go(func() error {
		ticker := time.NewTicker(scheduleCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				select {
				case s.mailbox <- inboundEvent{name: tickEvent}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		return s.loop(ctx)
	})

	return g.Wait()
}

// tickEvent is a synthetic internal event name, never delivered by the
// bus, that drives the periodic schedule re-check (spec.md §4.4 step 6).
const tickEvent = "__nfosync_tick__"

func (s *Service) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if err := s.deps.LastKnown.Write(); err != nil {
				s.logger.Error().Err(err).Msg("final write_changes on shutdown failed")
			}
			return nil
		case ev := <-s.mailbox:
			if ev.name == tickEvent {
				s.checkSchedule(ctx)
				continue
			}
			s.onNotification(ctx, ev.name, ev.payload)
		}
	}
}

// startup runs spec.md §4.4's start-up sequence.
func (s *Service) startup(ctx context.Context) error {
	cfg := s.config()

	s.applyVerbosity(ctx, cfg)

	switch {
	case cfg.Triggers.SyncOnStart:
		s.enqueueSyncAll(ctx, scheduler.Urgent, false)
	case cfg.Scheduled.IsEnabled && cfg.Scheduled.RunMissedSyncs &&
		IsScheduledSyncDue(time.Now(), cfg.Scheduled, s.deps.Timestamps.NextScheduled()):
		s.enqueueSyncAll(ctx, scheduler.Urgent, false)
	}

	if cfg.Scheduled.IsEnabled {
		if err := s.updateSchedule(cfg); err != nil {
			return err
		}
	}

	if cfg.Periodic.IsEnabled {
		s.periodicTrigger.Set(ctx, cfg.Periodic.Period)
	}

	return nil
}

func (s *Service) applyVerbosity(_ context.Context, cfg config.Config) {
	level := cfg.Log.Level
	if level == "" {
		if cfg.UI.IsLoggingVerbose {
			level = "debug"
		} else {
			level = "info"
		}
	}
	log.Configure(log.Config{Level: level})
}

func (s *Service) updateSchedule(cfg config.Config) error {
	next, err := UpdateSchedule(s.deps.Clock.Now(), cfg.Scheduled)
	if err != nil {
		return fmt.Errorf("compute next scheduled sync: %w", err)
	}
	return s.deps.Timestamps.SetNextScheduled(next)
}

func (s *Service) checkSchedule(ctx context.Context) {
	cfg := s.config()
	if !cfg.Scheduled.IsEnabled {
		return
	}
	if IsScheduledSyncDue(time.Now(), cfg.Scheduled, s.deps.Timestamps.NextScheduled()) {
		s.enqueueSyncAll(ctx, scheduler.Patient, false)
		if err := s.updateSchedule(cfg); err != nil {
			s.logger.Error().Err(err).Msg("failed to advance schedule after due sync")
		}
	}
}

// OnSettingsChanged implements spec.md §4.4's on_settings_changed: re-apply
// verbosity, reset the periodic alarm if its period changed, reset
// play_wait if its duration changed while active, recompute the
// schedule, and poke the scheduler (opening the patient gate may let
// queued work start).
func (s *Service) OnSettingsChanged(ctx context.Context, newCfg config.Config) {
	old := s.config()
	s.cfg.Store(&newCfg)

	s.applyVerbosity(ctx, newCfg)

	if newCfg.Periodic.IsEnabled != old.Periodic.IsEnabled || newCfg.Periodic.Period != old.Periodic.Period {
		if newCfg.Periodic.IsEnabled {
			s.periodicTrigger.Set(ctx, newCfg.Periodic.Period)
		} else {
			s.periodicTrigger.Cancel()
		}
	}

	if s.playWait.IsActive() && newCfg.Avoidance.WaitTime != old.Avoidance.WaitTime {
		s.playWait.Set(ctx, newCfg.Avoidance.WaitTime)
	}

	if newCfg.Scheduled.IsEnabled {
		if err := s.updateSchedule(newCfg); err != nil {
			s.logger.Error().Err(err).Msg("failed to recompute schedule on settings change")
		}
	}

	s.sched.Poke(ctx)
}

func (s *Service) actionsConfig(cfg config.Config) actions.Config {
	return actions.Config{
		ShouldClean:                cfg.Sync.ShouldClean,
		ShouldImport:               cfg.Sync.ShouldImport,
		ShouldExport:               cfg.Sync.ShouldExport,
		ShouldScan:                 cfg.Sync.ShouldScan,
		ShouldImportFirst:          cfg.Sync.ShouldImportFirst,
		CanCreateNfo:               cfg.Export.CanCreateNfo,
		MovieNfoNaming:             cfg.Export.MovieNfoNaming,
		IsMinimal:                  cfg.Export.IsMinimal,
		CanOverwrite:               cfg.Export.CanOverwrite,
		ActorHandling:              cfg.Export.ActorHandling,
		ShouldExportPluginTrailers: cfg.Export.ShouldExportPluginTrailers,
	}
}

// depsSnapshot returns a copy of s.deps with Config refreshed from
// the current settings, so a live settings change is honored by the next
// enqueued Action without racing a bulk action already in flight (each
// Action captures its own Deps value at construction time).
func (s *Service) depsSnapshot() *actions.Deps {
	cfg := s.config()
	d := *s.deps
	d.Config = s.actionsConfig(cfg)
	return &d
}

func (s *Service) progressSink() progress.Sink {
	cfg := s.config()
	if !cfg.UI.ShouldShowSync {
		return progress.NoOp{}
	}
	return progress.NewLogging(func(percent int, heading, message string) {
		s.logger.Info().Int("percent", percent).Str("heading", heading).Str("message", message).Msg("sync progress")
	})
}

func (s *Service) enqueueSyncAll(ctx context.Context, lane scheduler.Lane, skipScan bool) {
	act := actions.NewSyncAll(s.depsSnapshot(), skipScan, s.progressSink())
	s.sched.Enqueue(ctx, lane, act)
}

func (s *Service) enqueueSyncOne(ctx context.Context, lane scheduler.Lane, item media.Item) {
	act := actions.NewSyncOne(s.depsSnapshot(), item)
	s.sched.Enqueue(ctx, lane, act)
}

func (s *Service) enqueueImportAll(ctx context.Context, lane scheduler.Lane) {
	act := actions.NewImportAll(s.depsSnapshot(), s.progressSink())
	s.sched.Enqueue(ctx, lane, act)
}

func (s *Service) enqueueExportOne(ctx context.Context, lane scheduler.Lane, item media.Item) {
	act := actions.NewExportOne(s.depsSnapshot(), item, true, false)
	s.sched.Enqueue(ctx, lane, act)
}

func (s *Service) enqueueExportAll(ctx context.Context, lane scheduler.Lane) {
	act := actions.NewExportAll(s.depsSnapshot(), s.progressSink())
	s.sched.Enqueue(ctx, lane, act)
}

// Status is the admin /status JSON payload (SPEC_FULL.md §4.13).
type Status struct {
	Scheduler     scheduler.Status `json:"scheduler"`
	LastSync      time.Time        `json:"last_sync"`
	NextScheduled time.Time        `json:"next_scheduled"`
	Playing       bool             `json:"playing"`
}

// Snapshot returns the current Status for the admin HTTP surface.
func (s *Service) Snapshot() Status {
	return Status{
		Scheduler:     s.sched.Snapshot(),
		LastSync:      s.deps.Timestamps.LastSync(),
		NextScheduled: s.deps.Timestamps.NextScheduled(),
		Playing:       s.playing.Load(),
	}
}
