// SPDX-License-Identifier: MIT

// Package hostbridge implements SPEC_FULL.md §4.14's host notification
// bridge: it dials the host's line-delimited JSON-RPC TCP notification
// port and republishes every event it reads onto the engine's internal
// bus, so Service.onNotification sees host-originated events the same
// way it would running in-process inside the host.
//
// Grounded in internal/hostclient's bounded-retry-with-backoff posture
// for the reconnect loop; a momentary disconnect here must not be fatal
// to an otherwise-healthy daemon.
package hostbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/nfosync/nfosync/internal/bus"
)

// Config configures the Bridge.
type Config struct {
	// Addr is the host's notification TCP endpoint ("host:port"). Empty
	// disables the bridge.
	Addr string

	DialTimeout time.Duration
	RetryWait   time.Duration
	MaxRetryWait time.Duration
}

// Bridge dials Addr and republishes every notification it observes onto
// a Bus.
type Bridge struct {
	cfg    Config
	bus    bus.Bus
	logger zerolog.Logger
}

// New constructs a Bridge. Run is a no-op if cfg.Addr is empty.
func New(cfg Config, b bus.Bus, logger zerolog.Logger) *Bridge {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}
	if cfg.MaxRetryWait <= 0 {
		cfg.MaxRetryWait = 30 * time.Second
	}
	return &Bridge{cfg: cfg, bus: b, logger: logger.With().Str("component", "hostbridge").Logger()}
}

// notification is the JSON-RPC notification envelope the host's TCP
// interface streams: {"jsonrpc":"2.0","method":"VideoLibrary.OnUpdate","params":{"data":{...},"sender":"xbmc"}}
type notification struct {
	Method string `json:"method"`
	Params struct {
		Data json.RawMessage `json:"data"`
	} `json:"params"`
}

// Run connects to the host and republishes notifications onto the bus
// until ctx is canceled, reconnecting with exponential backoff on any
// read/dial failure. Returns nil when ctx is canceled, never on a
// transient connection failure.
func (br *Bridge) Run(ctx context.Context) error {
	if br.cfg.Addr == "" {
		<-ctx.Done()
		return nil
	}

	wait := br.cfg.RetryWait
	for {
		if err := br.runOnce(ctx); err != nil {
			br.logger.Warn().Err(err).Dur("retry_in", wait).Msg("host notification bridge disconnected")
		} else {
			wait = br.cfg.RetryWait
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		wait *= 2
		if wait > br.cfg.MaxRetryWait {
			wait = br.cfg.MaxRetryWait
		}
	}
}

func (br *Bridge) runOnce(ctx context.Context) error {
	dialer := net.Dialer{Timeout: br.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", br.cfg.Addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	br.logger.Info().Str("addr", br.cfg.Addr).Msg("host notification bridge connected")

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var n notification
		if err := json.Unmarshal(scanner.Bytes(), &n); err != nil {
			br.logger.Debug().Err(err).Msg("dropped malformed host notification")
			continue
		}
		if n.Method == "" {
			continue
		}
		if err := br.bus.Publish(ctx, n.Method, bus.Message{Method: n.Method, Payload: n.Params.Data}); err != nil {
			br.logger.Debug().Err(err).Str("method", n.Method).Msg("dropped host notification")
		}
	}
	return scanner.Err()
}
