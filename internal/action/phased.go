// SPDX-License-Identifier: MIT

package action

import (
	"context"
	"encoding/json"
)

// NextFunc lazily produces the next sub-Action in a Phased sequence, or
// ok=false when the sequence is exhausted. It may perform I/O (e.g.
// listing items from the host) the first time it's called.
type NextFunc func(ctx context.Context) (next Action, ok bool, err error)

// Phased delegates to an ordered, lazily-produced sequence of sub-Actions.
// While a sub-Action is active, Run delegates to it; if it suspends, the
// suspension propagates upward. If it completes, Phased immediately pulls
// the next sub-Action and continues within the same Run call, until
// either a sub-Action suspends or the sequence is exhausted.
type Phased struct {
	TypeName string
	Next     NextFunc

	// OnException translates a sub-Action failure into the error this
	// Phased action ultimately returns. Defaults to identity.
	OnException func(err error) error
	// Cleanup runs once, after completion or failure (e.g. closing a
	// progress sink). Defaults to no-op.
	Cleanup func()
	// Canceled is polled between sub-Actions; when it returns true the
	// sequence stops early without error (user cancellation).
	Canceled func() bool

	current     Action
	done        bool
	cleanupOnce bool
}

func (p *Phased) Type() string { return p.TypeName }

func (p *Phased) Awaiting() string {
	if p.done || p.current == nil {
		return ""
	}
	return p.current.Awaiting()
}

func (p *Phased) Run(ctx context.Context, payload json.RawMessage) (bool, error) {
	for {
		if p.Canceled != nil && p.Canceled() && p.current == nil {
			p.finish()
			return true, nil
		}

		if p.current == nil {
			next, ok, err := p.Next(ctx)
			if err != nil {
				werr := p.translate(err)
				p.finish()
				return true, werr
			}
			if !ok {
				p.finish()
				return true, nil
			}
			p.current = next
		}

		subDone, err := p.current.Run(ctx, payload)
		payload = nil // forwarded once per Phased.Run invocation

		if err != nil {
			werr := p.translate(err)
			p.finish()
			return true, werr
		}

		if !subDone {
			return false, nil
		}

		p.current = nil
	}
}

func (p *Phased) translate(err error) error {
	if p.OnException != nil {
		return p.OnException(err)
	}
	return err
}

func (p *Phased) finish() {
	if !p.cleanupOnce {
		p.cleanupOnce = true
		if p.Cleanup != nil {
			p.Cleanup()
		}
	}
	p.done = true
}
