// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"fmt"

	"github.com/nfosync/nfosync/internal/action"
	"github.com/nfosync/nfosync/internal/media"
	"github.com/nfosync/nfosync/internal/progress"
)

// NewExportAll runs ExportOne over every item of every media type, in the
// fixed movie/tvshow/episode order, progress-reporting, then flushes
// LastKnownStore. Each ExportOne runs as a subtask: a single item's
// failure is logged and skipped rather than aborting the whole pass.
func NewExportAll(d *Deps, sink progress.Sink) action.Action {
	if sink == nil {
		sink = noopSink()
	}

	p := &action.Phased{TypeName: "ExportAll"}
	p.Next = action.Chain(
		action.Lazy(func(ctx context.Context) ([]action.Action, error) {
			return exportAllItems(ctx, d, sink)
		}),
		action.Seq(NewWriteChanges(d)),
	)
	p.Canceled = sink.IsCanceled
	p.Cleanup = sink.Close
	p.OnException = func(err error) error {
		return action.NewError(NotifyExportFailure, "export all failed", err)
	}
	return p
}

func exportAllItems(ctx context.Context, d *Deps, sink progress.Sink) ([]action.Action, error) {
	var all []media.Item
	for _, t := range media.AllTypes {
		items, err := d.Gateway.ListAll(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("list %s items: %w", t, err)
		}
		all = append(all, items...)
	}

	sink.Create("Exporting library")

	out := make([]action.Action, 0, len(all))
	for i, item := range all {
		out = append(out, withProgress(
			newTolerantExportOne(d, item),
			sink, fmt.Sprintf("Exporting %s", item), i, len(all),
		))
	}
	return out, nil
}

// newTolerantExportOne wraps ExportOne (as a subtask, so NewExportOne
// itself logs but does not host-notify or flush) so a single item's
// export failure never aborts the rest of ExportAll: errors are already
// logged inside exportOne's caller and are swallowed here so the Phased
// sequence moves on to the next item.
func newTolerantExportOne(d *Deps, item media.Item) action.Action {
	inner := NewExportOne(d, item, true, true)
	return &action.Atomic{
		TypeName: "ExportOne",
		Fn: func(ctx context.Context) error {
			_, _ = inner.Run(ctx, nil)
			return nil
		},
	}
}
