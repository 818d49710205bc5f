// SPDX-License-Identifier: MIT

package action

import (
	"context"
	"encoding/json"
)

// RequestResponse performs a host request on its first Run, then suspends
// awaiting a named event. Match, if set, filters the resumption payload
// (e.g. by item id); while it returns false the action stays suspended
// (the event wasn't actually ours, e.g. a same-named event for a
// different item).
type RequestResponse struct {
	TypeName string
	Event    string
	Start    func(ctx context.Context) error
	Match    func(payload json.RawMessage) bool

	started bool
	done    bool
}

func (a *RequestResponse) Type() string { return a.TypeName }

func (a *RequestResponse) Awaiting() string {
	if a.done || !a.started {
		return ""
	}
	return a.Event
}

func (a *RequestResponse) Run(ctx context.Context, payload json.RawMessage) (bool, error) {
	if !a.started {
		a.started = true
		if err := a.Start(ctx); err != nil {
			a.done = true
			return true, err
		}
		return false, nil
	}

	if a.Match != nil && !a.Match(payload) {
		return false, nil
	}

	a.done = true
	return true, nil
}
