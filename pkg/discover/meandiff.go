// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package discover

import (
	"context"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

// MeanDifference derives a direction as mean(positive activations) -
// mean(negative activations) at layerIndex. It is the cheapest of the
// three methods and the one to reach for when pairing positive and
// negative inputs by position is not meaningful.
func MeanDifference(ctx context.Context, model llmhost.CausalLM, positive, negative []string, layerIndex int, opts CaptureOptions) (DiscoveryResult, error) {
	const op = "MeanDifference"
	if err := checkPreconditions(op, model, positive, negative, layerIndex, opts); err != nil {
		return DiscoveryResult{}, err
	}

	total := len(positive) + len(negative)
	done := 0
	posActs, err := capture(ctx, op, model, positive, layerIndex, opts, &done, total)
	if err != nil {
		return DiscoveryResult{}, err
	}
	negActs, err := capture(ctx, op, model, negative, layerIndex, opts, &done, total)
	if err != nil {
		return DiscoveryResult{}, err
	}

	posMean := meanVector(posActs)
	negMean := meanVector(negActs)

	dim := len(posMean)
	diff := make(llmhost.Tensor, dim)
	for i := range diff {
		diff[i] = float32(posMean[i] - negMean[i])
	}

	layerName := model.Blocks()[layerIndex].Name()
	vec, err := steervec.New(diff, layerIndex, layerName, model.Architecture(), steervec.Metadata{
		"method":            "mean_difference",
		"num_positive":      float64(len(positive)),
		"num_negative":      float64(len(negative)),
		"positive_magnitude": l2Magnitude(posMean),
		"negative_magnitude": l2Magnitude(negMean),
	})
	if err != nil {
		return DiscoveryResult{}, &ValidationError{Op: op, Err: err}
	}

	return DiscoveryResult{
		Vector: vec,
		Metrics: map[string]float64{
			"positive_magnitude": l2Magnitude(posMean),
			"negative_magnitude": l2Magnitude(negMean),
			"result_magnitude":   vec.Magnitude(),
			"num_inputs":         float64(total),
		},
	}, nil
}
