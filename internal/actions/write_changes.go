// SPDX-License-Identifier: MIT

package actions

import (
	"context"

	"github.com/nfosync/nfosync/internal/action"
)

// NewWriteChanges flushes LastKnownStore to disk. It is injected at the
// end of every bulk action (spec invariant 5: writes are batched across
// an Action, then persisted atomically by WriteChanges).
func NewWriteChanges(d *Deps) action.Action {
	return &action.Atomic{
		TypeName: "WriteChanges",
		Fn: func(ctx context.Context) error {
			return d.LastKnown.Write()
		},
	}
}
