// SPDX-License-Identifier: MIT

// Package actions composes the Action primitives in internal/action into
// the engine's concrete units of work: ExportOne, ImportOne, SyncOne,
// SyncAll, ImportAll, ExportAll, Clean, Scan and WriteChanges. Each
// constructor here returns an action.Action ready to hand to the
// Scheduler; none of them run anything themselves.
//
// Grounded in original_source/resources/lib/actions/{sync.py,import_.py,
// write_changes.py}: the phase ordering, change-detection rules and
// notification codes below reproduce that module's behavior.
package actions

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nfosync/nfosync/internal/bus"
	"github.com/nfosync/nfosync/internal/clock"
	"github.com/nfosync/nfosync/internal/laststate"
	"github.com/nfosync/nfosync/internal/media"
	"github.com/nfosync/nfosync/internal/progress"
	"github.com/nfosync/nfosync/internal/sidecar"
	"github.com/nfosync/nfosync/internal/timestamps"
)

// Notification codes from spec §7: localized-message identifiers
// attached to ActionError so the top-level handler can surface a
// host-side user notification without owning message translation.
const (
	NotifySyncAllFailure   = 32064
	NotifyImportAllFailure = 32085
	NotifySyncOneFailure   = 32086
	NotifyExportFailure    = 32043
	NotifyConfigError      = 32074
)

// Notifier surfaces a user-facing notification through the host, tagged
// with a notification code for localized message lookup.
type Notifier interface {
	NotifyUser(ctx context.Context, code int, message string) error
}

// Config is the subset of spec §6's configuration keys the actions
// package consumes.
type Config struct {
	ShouldClean          bool
	ShouldImport         bool
	ShouldExport         bool
	ShouldScan           bool
	ShouldImportFirst    bool
	CanCreateNfo         bool
	MovieNfoNaming       string
	IsMinimal            bool
	CanOverwrite         bool
	ActorHandling        string
	ShouldExportPluginTrailers bool
}

func (c Config) sidecarConfig() sidecar.Config {
	return sidecar.Config{
		IsMinimal:                  c.IsMinimal,
		CanOverwrite:               c.CanOverwrite,
		ActorHandling:              c.ActorHandling,
		ShouldExportPluginTrailers: c.ShouldExportPluginTrailers,
	}
}

// Deps bundles everything the concrete actions need, constructed once at
// Service start and shared by reference (spec §9's "module-global
// singletons, passed by reference" design note).
type Deps struct {
	Gateway    *media.Gateway
	LastKnown  *laststate.Store
	Timestamps *timestamps.Store
	Bus        bus.Bus
	Notifier   Notifier
	Sidecar    *sidecar.Writer
	Clock      clock.Clock
	Config     Config
	Logger     zerolog.Logger
}

// notifyFailure logs err and, unless this action is a subtask of a larger
// phased action, asks the host to surface code to the user.
func (d *Deps) notifyFailure(ctx context.Context, code int, component string, err error, subtask bool) {
	d.Logger.Error().Err(err).Str("component", component).Int("notification_code", code).Msg("action failed")
	if subtask || d.Notifier == nil {
		return
	}
	if nerr := d.Notifier.NotifyUser(ctx, code, err.Error()); nerr != nil {
		d.Logger.Warn().Err(nerr).Msg("failed to surface user notification")
	}
}

func noopSink() progress.Sink { return progress.NoOp{} }

func startOfScan(c clock.Clock) time.Time { return c.Now() }
