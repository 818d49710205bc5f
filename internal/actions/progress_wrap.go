// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nfosync/nfosync/internal/action"
	"github.com/nfosync/nfosync/internal/progress"
)

// progressItem decorates an Action with a progress.Sink update fired the
// first time it runs (heading/percent derived from its position among a
// known total), without altering its suspension behavior.
type progressItem struct {
	inner         action.Action
	sink          progress.Sink
	heading       string
	index, total  int
	reported      bool
}

func withProgress(inner action.Action, sink progress.Sink, heading string, index, total int) action.Action {
	return &progressItem{inner: inner, sink: sink, heading: heading, index: index, total: total}
}

func (p *progressItem) Type() string     { return p.inner.Type() }
func (p *progressItem) Awaiting() string { return p.inner.Awaiting() }

func (p *progressItem) Run(ctx context.Context, payload json.RawMessage) (bool, error) {
	if !p.reported {
		p.reported = true
		percent := 0
		if p.total > 0 {
			percent = p.index * 100 / p.total
		}
		p.sink.Update(percent, p.heading, fmt.Sprintf("%d/%d", p.index+1, p.total))
	}
	return p.inner.Run(ctx, payload)
}
