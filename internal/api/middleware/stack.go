// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package middleware holds the HTTP ingress stack of the admin server.
package middleware

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// StackConfig configures the canonical middleware stack.
type StackConfig struct {
	Logger zerolog.Logger
	// TracingService names the otelhttp handler; empty disables tracing.
	TracingService string
	EnableMetrics  bool
	EnableLogging  bool
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int
	CSP       string
}

// NewRouter constructs a chi router with the stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the middleware stack to r, outermost first.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer(cfg.Logger))
	r.Use(RequestID)
	r.Use(SecurityHeaders(cfg.CSP))
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(AccessLog(cfg.Logger))
	}
	if cfg.RateLimit > 0 {
		r.Use(AdminRateLimit(cfg.RateLimit))
	}
}
