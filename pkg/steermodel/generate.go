// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package steermodel

import (
	"context"
	"time"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

// Generate tokenizes prompts, runs the model's generation loop with
// whatever interceptors are currently active, and decodes the result.
// With no active interceptors this is identical to the bare model.
func (sm *SteeringModel) Generate(ctx context.Context, prompts []string, opts llmhost.GenerationOptions) ([]string, error) {
	sm.metrics.generateCalls.WithLabelValues(sm.sessionID).Inc()
	start := time.Now()
	defer func() {
		sm.metrics.generateLatency.WithLabelValues(sm.sessionID).Observe(time.Since(start).Seconds())
	}()

	out, err := sm.model.RunWithInterceptors(ctx, prompts, opts, sm.buildInterceptors())
	if err != nil {
		return nil, &ExternalError{Op: "Generate", Err: err}
	}
	return out, nil
}

// GenerateWithSteering is the canonical one-shot entry point: it applies
// vector at gain, runs Generate on a single prompt, and removes the
// vector on every exit path after it was applied, including when
// Generate fails. If ApplySteering fails nothing was installed and
// nothing is removed, so a caller never leaks an interceptor from this
// call.
func (sm *SteeringModel) GenerateWithSteering(ctx context.Context, prompt string, vector *steervec.SteeringVector, gain float32, opts llmhost.GenerationOptions) (string, error) {
	if err := sm.ApplySteering(vector, gain); err != nil {
		return "", err
	}
	layer := vector.LayerIndex()
	defer sm.RemoveSteering(&layer)

	out, err := sm.Generate(ctx, []string{prompt}, opts)
	if err != nil {
		return "", err
	}
	return out[0], nil
}
