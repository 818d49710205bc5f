// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nfosync/nfosync/internal/action"
	"github.com/nfosync/nfosync/internal/bus"
	"github.com/nfosync/nfosync/internal/media"
)

// importEventPayload is the subset of a VideoLibrary.OnRemove/OnUpdate
// notification payload ImportOne needs to match its own refresh request.
type importEventPayload struct {
	Item struct {
		Type media.Type `json:"type"`
		ID   uint32      `json:"id"`
	} `json:"item"`
}

// NewImportOne asks the host to refresh item, then suspends awaiting the
// completion event the spec's unified rule names: VideoLibrary.OnRemove
// for movie/episode, VideoLibrary.OnUpdate for tvshow, each matched by
// item id (the "Open Question" in spec §9 resolved there, not guessed
// again here).
func NewImportOne(d *Deps, item media.Item) action.Action {
	event := bus.TopicLibraryOnUpdate
	if media.ResumeOnRemove(item.Type) {
		event = bus.TopicLibraryOnRemove
	}

	return &action.RequestResponse{
		TypeName: "ImportOne",
		Event:    event,
		Start: func(ctx context.Context) error {
			if err := d.Gateway.Refresh(ctx, item); err != nil {
				return fmt.Errorf("request refresh for %s: %w", item, err)
			}
			return nil
		},
		Match: func(payload json.RawMessage) bool {
			var p importEventPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return false
			}
			if p.Item.ID != item.ID {
				return false
			}
			if event == bus.TopicLibraryOnUpdate {
				return p.Item.Type == item.Type
			}
			return true
		},
	}
}
