// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrManagerNotStarted is returned by Shutdown when Start was never called.
var ErrManagerNotStarted = errors.New("daemon manager not started")

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager owns the long-running Service's process-level concerns: the
// admin HTTP surface and an ordered shutdown sequence. It does not know
// anything about sync scheduling; that lives in the Service.
type Manager interface {
	// Start starts the admin server and blocks until ctx is cancelled or
	// the server fails.
	Start(ctx context.Context) error

	// Shutdown gracefully shuts down the admin server and runs every
	// registered shutdown hook, most-recently-registered first.
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a function to be called during shutdown.
	RegisterShutdownHook(name string, hook ShutdownHook)
}

// Config configures the admin HTTP server lifecycle.
type Config struct {
	ListenAddr      string
	Handler         http.Handler
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type namedHook struct {
	name string
	hook ShutdownHook
}

type manager struct {
	cfg    Config
	logger zerolog.Logger

	server *http.Server

	shutdownHooks []namedHook

	started bool
	mu      sync.Mutex
}

// NewManager creates a daemon manager for the admin HTTP server described
// by cfg. A zero ListenAddr disables the admin server entirely; Start then
// only waits on ctx and runs shutdown hooks when it is cancelled.
func NewManager(cfg Config, logger zerolog.Logger) Manager {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &manager{
		cfg:    cfg,
		logger: logger.With().Str("component", "daemon_manager").Logger(),
	}
}

func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	errChan := make(chan error, 1)

	if m.cfg.ListenAddr != "" && m.cfg.Handler != nil {
		m.server = &http.Server{
			Addr:              m.cfg.ListenAddr,
			Handler:           m.cfg.Handler,
			ReadTimeout:       m.cfg.ReadTimeout,
			ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
			WriteTimeout:      m.cfg.WriteTimeout,
			IdleTimeout:       m.cfg.IdleTimeout,
		}

		go func() {
			m.logger.Info().Str("addr", m.cfg.ListenAddr).Msg("admin server listening")
			if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.logger.Error().Err(err).Msg("admin server failed")
				errChan <- fmt.Errorf("admin server: %w", err)
			}
		}()
	}

	select {
	case err := <-errChan:
		if shutdownErr := m.Shutdown(context.Background()); shutdownErr != nil {
			return fmt.Errorf("%w (shutdown: %v)", err, shutdownErr)
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
		return m.Shutdown(context.Background())
	}
}

func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return ErrManagerNotStarted
	}

	m.logger.Info().Msg("shutting down daemon manager")

	shutdownCtx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error

	if m.server != nil {
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("admin server shutdown: %w", err))
		}
	}

	for i := len(m.shutdownHooks) - 1; i >= 0; i-- {
		hook := m.shutdownHooks[i]
		start := time.Now()
		if err := hook.hook(shutdownCtx); err != nil {
			m.logger.Error().Err(err).Str("hook", hook.name).Dur("duration", time.Since(start)).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.name, err))
			continue
		}
		m.logger.Debug().Str("hook", hook.name).Dur("duration", time.Since(start)).Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	m.logger.Info().Msg("daemon manager stopped cleanly")
	return nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
	m.logger.Debug().Str("hook", name).Msg("registered shutdown hook")
}
