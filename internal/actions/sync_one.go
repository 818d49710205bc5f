// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"fmt"

	"github.com/nfosync/nfosync/internal/action"
	"github.com/nfosync/nfosync/internal/media"
)

// NewSyncOne decides, for a single item, whether to import (sidecar is
// newer than what the engine last saw), export (the host's view changed
// since the last known checksum), both, or neither, per spec §4.2's
// change-detection rules, then runs whichever sub-actions are warranted
// in the configured order.
func NewSyncOne(d *Deps, item media.Item) action.Action {
	p := &action.Phased{TypeName: "SyncOne"}
	p.Next = action.Lazy(func(ctx context.Context) ([]action.Action, error) {
		return planSyncOne(ctx, d, item)
	})
	p.OnException = func(err error) error {
		return action.NewError(NotifySyncOneFailure, fmt.Sprintf("sync %s failed", item), err)
	}
	return p
}

func planSyncOne(ctx context.Context, d *Deps, item media.Item) ([]action.Action, error) {
	last, _ := d.LastKnown.Get(item)

	var shouldExport bool
	if d.Config.ShouldExport {
		info := d.Gateway.NewInfo(item)
		checksum, err := info.Checksum(ctx)
		if err != nil {
			return nil, fmt.Errorf("compute checksum for %s: %w", item, err)
		}
		shouldExport = !last.HasChecksum || checksum != last.Checksum
	}

	var shouldImport bool
	if d.Config.ShouldImport {
		_, mtime, exists, err := d.Gateway.NfoPath(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("stat nfo for %s: %w", item, err)
		}
		if exists {
			floor := d.Timestamps.LastSync().Unix()
			if last.HasNfoMtime && last.NfoMtime > floor {
				floor = last.NfoMtime
			}
			shouldImport = mtime.Unix() > floor
		}
	}

	switch {
	case shouldImport && shouldExport:
		if d.Config.ShouldImportFirst {
			return []action.Action{
				NewImportOne(d, item),
				NewExportOne(d, item, false, true),
			}, nil
		}
		return []action.Action{
			NewExportOne(d, item, true, true),
			NewImportOne(d, item),
		}, nil
	case shouldImport:
		return []action.Action{NewImportOne(d, item)}, nil
	case shouldExport:
		return []action.Action{NewExportOne(d, item, true, true)}, nil
	default:
		return nil, nil
	}
}
