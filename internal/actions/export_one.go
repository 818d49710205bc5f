// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nfosync/nfosync/internal/action"
	"github.com/nfosync/nfosync/internal/media"
)

// NewExportOne writes item's current MediaInfo out to its sidecar NFO,
// creating the file if absent and export.can_create_nfo is set. subtask
// suppresses the user-facing failure notification and the LastKnownStore
// flush: both are the enclosing phased action's responsibility.
func NewExportOne(d *Deps, item media.Item, overwrite bool, subtask bool) action.Action {
	return &action.Atomic{
		TypeName: "ExportOne",
		Fn: func(ctx context.Context) error {
			if err := exportOne(ctx, d, item, overwrite); err != nil {
				aerr := action.NewError(NotifyExportFailure, fmt.Sprintf("export %s failed", item), err)
				d.notifyFailure(ctx, NotifyExportFailure, "ExportOne", aerr, subtask)
				return aerr
			}
			if !subtask {
				return d.LastKnown.Write()
			}
			return nil
		},
	}
}

func exportOne(ctx context.Context, d *Deps, item media.Item, overwrite bool) error {
	existingPath, _, exists, err := d.Gateway.NfoPath(ctx, item)
	if err != nil {
		return fmt.Errorf("resolve nfo path: %w", err)
	}

	path := existingPath
	create := false
	if !exists {
		if !d.Config.CanCreateNfo {
			return fmt.Errorf("no sidecar for %s and creation disabled", item)
		}
		path = d.Gateway.CreateNfoPath(item)
		create = true
	}

	info := d.Gateway.NewInfo(item)

	details, err := info.Details(ctx)
	if err != nil {
		return fmt.Errorf("fetch details: %w", err)
	}

	var art, setRaw, seasonsRaw json.RawMessage
	if !d.Config.IsMinimal {
		art, err = info.Art(ctx)
		if err != nil {
			return fmt.Errorf("fetch art: %w", err)
		}
		if item.Type == media.TypeMovie {
			setRaw, err = info.MovieSet(ctx)
			if err != nil {
				return fmt.Errorf("fetch movie set: %w", err)
			}
		}
		if item.Type == media.TypeTVShow {
			seasonsRaw, err = info.Seasons(ctx)
			if err != nil {
				return fmt.Errorf("fetch seasons: %w", err)
			}
		}
	}

	mtime, err := d.Sidecar.Write(path, create, item, details, art, setRaw, seasonsRaw, overwrite, d.Config.sidecarConfig())
	if err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}

	checksum, err := info.Checksum(ctx)
	if err != nil {
		return fmt.Errorf("compute checksum: %w", err)
	}
	d.LastKnown.SetChecksum(item, checksum)
	d.LastKnown.SetNfoMtime(item, mtime.Unix())

	return nil
}
