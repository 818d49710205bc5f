// SPDX-License-Identifier: MIT

package actions

import (
	"context"

	"github.com/nfosync/nfosync/internal/action"
	"github.com/nfosync/nfosync/internal/bus"
)

// NewClean issues VideoLibrary.Clean and suspends awaiting
// VideoLibrary.OnCleanFinished.
func NewClean(d *Deps) action.Action {
	return &action.RequestResponse{
		TypeName: "Clean",
		Event:    bus.TopicLibraryOnCleanFinish,
		Start: func(ctx context.Context) error {
			return d.Gateway.Clean(ctx)
		},
	}
}

// NewScan issues VideoLibrary.Scan and suspends awaiting
// VideoLibrary.OnScanFinished.
func NewScan(d *Deps) action.Action {
	return &action.RequestResponse{
		TypeName: "Scan",
		Event:    bus.TopicLibraryOnScanFinished,
		Start: func(ctx context.Context) error {
			return d.Gateway.Scan(ctx)
		},
	}
}
