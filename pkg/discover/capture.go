// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package discover implements the contrastive-text discovery algorithms
// that derive SteeringVectors from a loaded causal LM: mean-difference,
// contrastive activation addition (CAA), and a linear-probe direction.
// All three share one activation-capture preamble and differ only in how
// they reduce the captured matrices to a single direction.
package discover

import (
	"context"
	"fmt"
	"math"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

// CaptureOptions configures the shared activation-capture primitive.
type CaptureOptions struct {
	// BatchSize bounds how many inputs are sent through the model per
	// forward pass.
	BatchSize int

	// MaxLength truncates tokenized inputs.
	MaxLength int

	// Progress, if set, is invoked after every batch with the running
	// count of inputs processed and the total to process.
	Progress func(done, total int)
}

func (o CaptureOptions) withDefaults() CaptureOptions {
	if o.BatchSize < 1 {
		o.BatchSize = 8
	}
	if o.MaxLength < 1 {
		o.MaxLength = 512
	}
	return o
}

// DiscoveryResult is the common return shape of every method in this
// package: the derived vector plus quantitative metrics and free-form
// qualitative notes.
type DiscoveryResult struct {
	Vector  *steervec.SteeringVector
	Metrics map[string]float64
	Notes   []string
}

func checkPreconditions(op string, model llmhost.CausalLM, positive, negative []string, layerIndex int, opts CaptureOptions) error {
	if len(positive) == 0 || len(negative) == 0 {
		return &ValidationError{Op: op, Err: ErrEmptyContrastSet}
	}
	if layerIndex < 0 || layerIndex >= len(model.Blocks()) {
		return &ValidationError{Op: op, Err: ErrInvalidLayer}
	}
	if opts.BatchSize < 0 {
		return &ValidationError{Op: op, Err: ErrInvalidBatchSize}
	}
	if opts.MaxLength < 0 {
		return &ValidationError{Op: op, Err: ErrInvalidMaxLength}
	}
	return nil
}

// capture runs the shared activation-capture preamble: batches inputs
// through the model's CaptureActivations primitive at layerIndex and
// returns one mean-pooled vector per input, in input order. The caller's
// model is responsible for mean-pooling over non-padding positions and
// releasing any interceptor it installs, per the host-collaborator
// contract in pkg/llmhost.
func capture(ctx context.Context, op string, model llmhost.CausalLM, inputs []string, layerIndex int, opts CaptureOptions, done *int, total int) ([]llmhost.Tensor, error) {
	opts = opts.withDefaults()
	var out []llmhost.Tensor
	for start := 0; start < len(inputs); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(inputs) {
			end = len(inputs)
		}
		batch, err := model.CaptureActivations(ctx, inputs[start:end], layerIndex, opts.MaxLength)
		if err != nil {
			return nil, &ExternalError{Op: op, Err: fmt.Errorf("capture activations [%d:%d]: %w", start, end, err)}
		}
		out = append(out, batch...)
		*done += len(batch)
		if opts.Progress != nil {
			opts.Progress(*done, total)
		}
	}
	return out, nil
}

func meanVector(vectors []llmhost.Tensor) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	mean := make([]float64, dim)
	for _, v := range vectors {
		for i, f := range v {
			mean[i] += float64(f)
		}
	}
	n := float64(len(vectors))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}

func l2Magnitude(v []float64) float64 {
	sum := 0.0
	for _, f := range v {
		sum += f * f
	}
	return math.Sqrt(sum)
}
