// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package discover

import (
	"context"
	"fmt"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

// CAA derives a direction by pairing positive[i] with negative[i] (by
// position, truncated to the shorter list), differencing each pair, and
// averaging the per-pair differences. The mean of the per-pair
// differences equals the difference of the means over the paired inputs,
// so with equal-length lists the result is the same vector MeanDifference
// returns; the two differ only when unpaired inputs are dropped.
func CAA(ctx context.Context, model llmhost.CausalLM, positive, negative []string, layerIndex int, opts CaptureOptions) (DiscoveryResult, error) {
	const op = "CAA"
	if err := checkPreconditions(op, model, positive, negative, layerIndex, opts); err != nil {
		return DiscoveryResult{}, err
	}

	n := len(positive)
	if len(negative) < n {
		n = len(negative)
	}
	dropped := (len(positive) - n) + (len(negative) - n)

	total := 2 * n
	done := 0
	posActs, err := capture(ctx, op, model, positive[:n], layerIndex, opts, &done, total)
	if err != nil {
		return DiscoveryResult{}, err
	}
	negActs, err := capture(ctx, op, model, negative[:n], layerIndex, opts, &done, total)
	if err != nil {
		return DiscoveryResult{}, err
	}

	dim := len(posActs[0])
	acc := make([]float64, dim)
	for i := 0; i < n; i++ {
		for j := 0; j < dim; j++ {
			acc[j] += float64(posActs[i][j]) - float64(negActs[i][j])
		}
	}
	for j := range acc {
		acc[j] /= float64(n)
	}

	diff := make(llmhost.Tensor, dim)
	for j, f := range acc {
		diff[j] = float32(f)
	}

	var notes []string
	if dropped > 0 {
		notes = append(notes, fmt.Sprintf("dropped %d unpaired input(s) to align positive/negative by position", dropped))
	}

	layerName := model.Blocks()[layerIndex].Name()
	vec, err := steervec.New(diff, layerIndex, layerName, model.Architecture(), steervec.Metadata{
		"method":    "caa",
		"num_pairs": float64(n),
		"dropped":   float64(dropped),
	})
	if err != nil {
		return DiscoveryResult{}, &ValidationError{Op: op, Err: err}
	}

	return DiscoveryResult{
		Vector: vec,
		Metrics: map[string]float64{
			"result_magnitude": vec.Magnitude(),
			"num_pairs":        float64(n),
			"dropped":          float64(dropped),
		},
		Notes: notes,
	}, nil
}
