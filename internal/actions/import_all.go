// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"fmt"

	"github.com/nfosync/nfosync/internal/action"
	"github.com/nfosync/nfosync/internal/media"
	"github.com/nfosync/nfosync/internal/progress"
)

// NewImportAll runs ImportOne over every item of every media type, in the
// fixed movie/tvshow/episode order, progress-reporting, then flushes
// LastKnownStore.
func NewImportAll(d *Deps, sink progress.Sink) action.Action {
	if sink == nil {
		sink = noopSink()
	}

	p := &action.Phased{TypeName: "ImportAll"}
	p.Next = action.Chain(
		action.Lazy(func(ctx context.Context) ([]action.Action, error) {
			return importAllItems(ctx, d, sink)
		}),
		action.Seq(NewWriteChanges(d)),
	)
	p.Canceled = sink.IsCanceled
	p.Cleanup = sink.Close
	p.OnException = func(err error) error {
		return action.NewError(NotifyImportAllFailure, "import all failed", err)
	}
	return p
}

func importAllItems(ctx context.Context, d *Deps, sink progress.Sink) ([]action.Action, error) {
	var all []media.Item
	for _, t := range media.AllTypes {
		items, err := d.Gateway.ListAll(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("list %s items: %w", t, err)
		}
		all = append(all, items...)
	}

	sink.Create("Importing library")

	out := make([]action.Action, 0, len(all))
	for i, item := range all {
		out = append(out, withProgress(NewImportOne(d, item), sink, fmt.Sprintf("Importing %s", item), i, len(all)))
	}
	return out, nil
}
