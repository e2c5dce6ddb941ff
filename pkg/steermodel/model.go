// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package steermodel implements the runtime that registers and removes
// layer interceptors on a loaded causal LM, applies steering vectors with
// a scalar gain during generation, and exposes a guarded one-shot
// generation path. It holds no internal locks: callers must not drive a
// single SteeringModel from parallel goroutines, the same single-threaded
// contract the library this is modeled on places on its own stateful
// wrappers.
package steermodel

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

// Options configures FromPretrained. Fields mirror the spec's
// configuration surface for from_pretrained: device placement, precision,
// quantization flags, trust-remote-code, and an explicit tokenizer
// override. Extra is checked against a table of recognized extra keys,
// which is empty, so any key in Extra is rejected with
// ErrUnrecognizedOption and typos fail loudly instead of being silently
// ignored.
type Options struct {
	DeviceMap       string
	Dtype           string
	Load8Bit        bool
	Load4Bit        bool
	TrustRemoteCode bool
	TokenizerName   string
	Extra           map[string]any
}

var recognizedExtraKeys = map[string]bool{}

func (o Options) validate() error {
	if o.Load8Bit && o.Load4Bit {
		return &ValidationError{Op: "FromPretrained", Err: ErrConflictingQuantization}
	}
	for k := range o.Extra {
		if !recognizedExtraKeys[k] {
			return &ValidationError{Op: "FromPretrained", Err: fmt.Errorf("%w: %q", ErrUnrecognizedOption, k)}
		}
	}
	return nil
}

// activeEntry is one row of the active-interceptor table.
type activeEntry struct {
	vector *steervec.SteeringVector
	gain   float32
}

// ActiveSteering is a read-only snapshot of one active-interceptor table
// row, as returned by ListActiveSteering.
type ActiveSteering struct {
	Layer            int
	Gain             float32
	Magnitude        float64
	ModelFingerprint string
}

// SteeringModel wraps a loaded causal LM with steering-vector injection.
// It holds no locks: single-threaded per instance, per the concurrency
// model this package implements.
type SteeringModel struct {
	model     llmhost.CausalLM
	arch      ArchSpec
	archTag   string
	options   Options
	sessionID string

	active map[int]activeEntry

	metrics *metricSet
}

// FromPretrained wraps an already-loaded causal LM for steering. steerkit
// never loads or instantiates models itself — that stays the host
// framework's job — this only resolves the architecture tag against the
// registry and validates opts.
func FromPretrained(model llmhost.CausalLM, opts Options) (*SteeringModel, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	arch, err := LookupArchitecture(model.Architecture())
	if err != nil {
		return nil, err
	}

	sm := &SteeringModel{
		model:     model,
		arch:      arch,
		archTag:   model.Architecture(),
		options:   opts,
		sessionID: uuid.NewString(),
		active:    make(map[int]activeEntry),
		metrics:   newMetricSet(),
	}
	sm.metrics.sessionsCreated.Inc()
	return sm, nil
}

// SessionID is the identifier this instance registers on
// internal/server's per-session prometheus labels.
func (sm *SteeringModel) SessionID() string { return sm.sessionID }

// Architecture reports the resolved architecture tag.
func (sm *SteeringModel) Architecture() string { return sm.archTag }

// metricSet groups the prometheus collectors a SteeringModel reports.
// This package registers nothing itself; a caller registers the
// collectors returned by Collectors() (internal/server does so on its own
// registry). Instances share the collectors and differentiate by the
// session_id label.
type metricSet struct {
	sessionsCreated  prometheus.Counter
	activeLayerGauge *prometheus.GaugeVec
	generateCalls    *prometheus.CounterVec
	generateLatency  *prometheus.HistogramVec
}

var defaultMetrics = struct {
	sessionsCreated  prometheus.Counter
	activeLayerGauge *prometheus.GaugeVec
	generateCalls    *prometheus.CounterVec
	generateLatency  *prometheus.HistogramVec
}{
	sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "steerkit",
		Name:      "sessions_created_total",
		Help:      "Total SteeringModel instances constructed via FromPretrained.",
	}),
	activeLayerGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "steerkit",
		Name:      "active_interceptors",
		Help:      "Number of layers currently steered, per session.",
	}, []string{"session_id"}),
	generateCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steerkit",
		Name:      "generate_calls_total",
		Help:      "Total Generate/GenerateWithSteering calls, per session.",
	}, []string{"session_id"}),
	generateLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "steerkit",
		Name:      "generate_latency_seconds",
		Help:      "Generate call latency, per session.",
	}, []string{"session_id"}),
}

func newMetricSet() *metricSet {
	return &metricSet{
		sessionsCreated:  defaultMetrics.sessionsCreated,
		activeLayerGauge: defaultMetrics.activeLayerGauge,
		generateCalls:    defaultMetrics.generateCalls,
		generateLatency:  defaultMetrics.generateLatency,
	}
}

// Collectors returns the prometheus collectors steerkit reports, for
// registration on internal/server's /metrics registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		defaultMetrics.sessionsCreated,
		defaultMetrics.activeLayerGauge,
		defaultMetrics.generateCalls,
		defaultMetrics.generateLatency,
	}
}
