// SPDX-License-Identifier: MIT

// Package httpapi builds the admin HTTP surface SPEC_FULL.md §4.13
// describes: a small chi router, rate-limited with httprate, exposing
// liveness, scheduler/sync status and Prometheus metrics. The resulting
// handler is served by a daemon.Manager; this package owns routing only,
// not the listener lifecycle.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusFunc supplies the live Service snapshot for /status. Using a
// function instead of the concrete *service.Service type keeps this
// package decoupled from service's import graph.
type StatusFunc func() any

// Config configures the admin router.
type Config struct {
	// Status supplies the current Service snapshot. Required.
	Status StatusFunc
	// RateLimitRPS caps requests per second per client IP; 0 disables
	// rate limiting entirely.
	RateLimitRPS int
}

// NewRouter builds the admin http.Handler described by SPEC_FULL.md §4.13.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	if cfg.RateLimitRPS > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitRPS, time.Second))
	}

	r.Get("/healthz", handleHealth)
	r.Get("/status", handleStatus(cfg.Status))
	r.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(r, "nfosync.admin")
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func handleStatus(status StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if status == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"status unavailable"}`))
			return
		}
		if err := json.NewEncoder(w).Encode(status()); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}
