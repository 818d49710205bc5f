// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/nfosync/nfosync/internal/action"
	"github.com/nfosync/nfosync/internal/media"
	"github.com/nfosync/nfosync/internal/progress"
)

// NewSyncAll builds the top-level sync phased action: optional Clean,
// then a SyncChanges pass over every item of every media type in fixed
// order (movie, tvshow, episode), recording last_sync at the moment
// scanning began, then optional Scan (suppressed when skipScan is set,
// e.g. for the patient re-run VideoLibrary.OnScanFinished triggers so it
// doesn't re-trigger itself).
func NewSyncAll(d *Deps, skipScan bool, sink progress.Sink) action.Action {
	if sink == nil {
		sink = noopSink()
	}

	p := &action.Phased{TypeName: "SyncAll"}
	p.Next = action.Chain(
		conditionalSeq(d.Config.ShouldClean, func() action.Action { return NewClean(d) }),
		action.Seq(newSyncChanges(d, sink)),
		conditionalSeq(d.Config.ShouldScan && !skipScan, func() action.Action { return NewScan(d) }),
		action.Seq(NewWriteChanges(d)),
	)
	p.Canceled = sink.IsCanceled
	p.Cleanup = sink.Close
	p.OnException = func(err error) error {
		return action.NewError(NotifySyncAllFailure, "sync all failed", err)
	}
	return p
}

// conditionalSeq yields build() exactly once when enabled is true, or
// nothing at all.
func conditionalSeq(enabled bool, build func() action.Action) action.NextFunc {
	if !enabled {
		return action.Seq()
	}
	return action.Seq(build())
}

// newSyncChanges iterates every known item of every media type, emitting
// a SyncOne for each, then stamps last_sync with the time scanning began.
func newSyncChanges(d *Deps, sink progress.Sink) action.Action {
	var startedAt int64

	p := &action.Phased{TypeName: "SyncChanges"}
	p.Next = action.Chain(
		// Side-effecting generator: captures the scan start time, then
		// immediately reports exhausted so Chain moves to the real work.
		func(ctx context.Context) (action.Action, bool, error) {
			startedAt = d.Clock.Now().Unix()
			return nil, false, nil
		},
		action.Lazy(func(ctx context.Context) ([]action.Action, error) {
			return syncOneItemsAcrossTypes(ctx, d, sink)
		}),
		action.Seq(&action.Atomic{
			TypeName: "SyncChangesWatermark",
			Fn: func(ctx context.Context) error {
				return d.Timestamps.SetLastSync(time.Unix(startedAt, 0).UTC())
			},
		}),
	)
	p.Canceled = sink.IsCanceled
	return p
}

func syncOneItemsAcrossTypes(ctx context.Context, d *Deps, sink progress.Sink) ([]action.Action, error) {
	var all []media.Item
	for _, t := range media.AllTypes {
		items, err := d.Gateway.ListAll(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("list %s items: %w", t, err)
		}
		all = append(all, items...)
	}

	sink.Create("Syncing library")

	out := make([]action.Action, 0, len(all))
	for i, item := range all {
		out = append(out, withProgress(NewSyncOne(d, item), sink, fmt.Sprintf("Syncing %s", item), i, len(all)))
	}
	return out, nil
}
