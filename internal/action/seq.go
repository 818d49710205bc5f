// SPDX-License-Identifier: MIT

package action

import "context"

// Seq returns a NextFunc that yields each of items in order, then ok=false.
func Seq(items ...Action) NextFunc {
	i := 0
	return func(context.Context) (Action, bool, error) {
		if i >= len(items) {
			return nil, false, nil
		}
		a := items[i]
		i++
		return a, true, nil
	}
}

// Chain concatenates several NextFuncs into one lazy sequence, advancing
// to the next generator only once the previous one is exhausted.
func Chain(gens ...NextFunc) NextFunc {
	i := 0
	return func(ctx context.Context) (Action, bool, error) {
		for i < len(gens) {
			a, ok, err := gens[i](ctx)
			if err != nil {
				return nil, false, err
			}
			if ok {
				return a, true, nil
			}
			i++
		}
		return nil, false, nil
	}
}

// Lazy builds its item list on first use via build (which may perform
// I/O, e.g. listing items from a host), then yields them in order.
func Lazy(build func(ctx context.Context) ([]Action, error)) NextFunc {
	var items []Action
	built := false
	i := 0
	return func(ctx context.Context) (Action, bool, error) {
		if !built {
			its, err := build(ctx)
			if err != nil {
				return nil, false, err
			}
			items = its
			built = true
		}
		if i >= len(items) {
			return nil, false, nil
		}
		a := items[i]
		i++
		return a, true, nil
	}
}
