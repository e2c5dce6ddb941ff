// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package server exposes steerkit's discovery, composition, and steering
// primitives over HTTP so a non-Go host process can drive them. It always
// steers the in-memory reference model (internal/refmodel); a real model
// integration embeds pkg/steermodel directly instead of going through
// this server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumen-ai/steerkit/internal/refmodel"
	"github.com/lumen-ai/steerkit/pkg/steermodel"
)

// Server wires a steermodel.SteeringModel and a directory of saved
// vectors to an http.ServeMux. SteeringModel itself holds no internal
// locks, so every handler that changes its steering or generates with it
// serializes through modelMu. handleHealth reads only the architecture
// tag and session id, which never change after construction, unlocked.
type Server struct {
	config   Config
	refModel *refmodel.Model
	model    *steermodel.SteeringModel
	modelMu  sync.Mutex
	mux      *http.ServeMux
	registry *prometheus.Registry
}

// New builds a Server from cfg, backed by a freshly constructed
// reference model sized per cfg.ReferenceHiddenDim/ReferenceNumLayers.
func New(cfg Config) (*Server, error) {
	ref := refmodel.New(refmodel.Options{
		HiddenDim: cfg.ReferenceHiddenDim,
		NumLayers: cfg.ReferenceNumLayers,
	})
	model, err := steermodel.FromPretrained(ref, steermodel.Options{})
	if err != nil {
		return nil, fmt.Errorf("server: construct reference model: %w", err)
	}

	registry := prometheus.NewRegistry()
	for _, c := range steermodel.Collectors() {
		if err := registry.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, fmt.Errorf("server: register metrics: %w", err)
			}
		}
	}

	s := &Server{config: cfg, refModel: ref, model: model, registry: registry}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/discover/{method}", s.handleDiscover)
	mux.HandleFunc("GET /api/vectors", s.handleListVectors)
	mux.HandleFunc("GET /api/vectors/{name}", s.handleGetVector)
	mux.HandleFunc("GET /api/vectors/conflicts", s.handleConflicts)
	mux.HandleFunc("POST /api/vectors/diff", s.handleVectorDiff)
	mux.HandleFunc("POST /api/vectors/pull", s.handleVectorPull)
	mux.HandleFunc("POST /api/steering/apply", s.handleApplySteering)
	mux.HandleFunc("GET /api/steering/active", s.handleListActiveSteering)
	mux.HandleFunc("POST /api/steering/clear", s.handleRemoveSteering)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.mux = mux
}

// ListenAndServe blocks, serving until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{Addr: s.config.ListenAddr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return httpServer.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
