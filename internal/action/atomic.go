// SPDX-License-Identifier: MIT

package action

import (
	"context"
	"encoding/json"
)

// Atomic runs Fn once to completion; it never suspends.
type Atomic struct {
	TypeName string
	Fn       func(ctx context.Context) error
}

func (a *Atomic) Type() string     { return a.TypeName }
func (a *Atomic) Awaiting() string { return "" }

func (a *Atomic) Run(ctx context.Context, _ json.RawMessage) (bool, error) {
	if err := a.Fn(ctx); err != nil {
		return true, err
	}
	return true, nil
}
