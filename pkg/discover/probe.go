// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package discover

import (
	"context"
	"fmt"
	"math"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

// ProbeL2Penalty is the inverse regularization strength (C=1.0) used for
// every linear probe this package fits.
const ProbeL2Penalty = 1.0

// ProbeTolerance is the convergence tolerance on the L2 norm of the
// gradient.
const ProbeTolerance = 1e-4

// ProbeMaxIterations bounds the gradient-descent loop so a
// poorly-conditioned contrast set cannot hang discovery.
const ProbeMaxIterations = 1000

// probeLearningRate is fixed rather than line-searched: deterministic,
// bounded-iteration gradient descent is enough for a probe whose only
// job is to produce a direction, not a tuned classifier.
const probeLearningRate = 0.1

// LinearProbe derives a direction by fitting a binary logistic
// classifier (positive=1, negative=0) with an L2 penalty over the
// captured activations, then unit-normalizing the trained coefficient
// vector. Training does not draw random numbers: weights are
// initialized to zero, which together with the fixed learning rate and
// iteration bound makes the fit fully deterministic (random_state=0 has
// no effect on that determinism here, but is recorded in metadata for
// parity with the probe training routine this method is modeled on).
func LinearProbe(ctx context.Context, model llmhost.CausalLM, positive, negative []string, layerIndex int, opts CaptureOptions) (DiscoveryResult, error) {
	const op = "LinearProbe"
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

	dim := len(posActs[0])
	rows := make([][]float64, 0, len(posActs)+len(negActs))
	labels := make([]float64, 0, len(posActs)+len(negActs))
	for _, a := range posActs {
		rows = append(rows, tensorToFloat64(a))
		labels = append(labels, 1)
	}
	for _, a := range negActs {
		rows = append(rows, tensorToFloat64(a))
		labels = append(labels, 0)
	}

	weights, bias, iterations, converged := fitLogisticRegression(rows, labels, dim)

	correct := 0
	for i, row := range rows {
		if predictLabel(weights, bias, row) == labels[i] {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(rows))

	norm := l2Magnitude(weights)
	direction := make(llmhost.Tensor, dim)
	if norm > 0 {
		for i, w := range weights {
			direction[i] = float32(w / norm)
		}
	}

	var notes []string
	if !converged {
		notes = append(notes, fmt.Sprintf("probe did not converge within %d iterations; direction is the final iterate", ProbeMaxIterations))
	}

	layerName := model.Blocks()[layerIndex].Name()
	vec, err := steervec.New(direction, layerIndex, layerName, model.Architecture(), steervec.Metadata{
		"method":        "linear_probe",
		"c":             ProbeL2Penalty,
		"random_state":  float64(0),
		"iterations":    float64(iterations),
		"converged":     converged,
		"train_accuracy": accuracy,
	})
	if err != nil {
		return DiscoveryResult{}, &ValidationError{Op: op, Err: err}
	}

	return DiscoveryResult{
		Vector: vec,
		Metrics: map[string]float64{
			"train_accuracy": accuracy,
			"iterations":     float64(iterations),
		},
		Notes: notes,
	}, nil
}

func tensorToFloat64(t llmhost.Tensor) []float64 {
	out := make([]float64, len(t))
	for i, f := range t {
		out[i] = float64(f)
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func predictLabel(weights []float64, bias float64, row []float64) float64 {
	z := bias
	for i, w := range weights {
		z += w * row[i]
	}
	if sigmoid(z) >= 0.5 {
		return 1
	}
	return 0
}

// fitLogisticRegression fits an L2-penalized binary logistic classifier
// by batch gradient descent, starting from zero weights. The penalty
// term is 1/C = 1/ProbeL2Penalty, applied to the weight vector only (not
// the bias).
func fitLogisticRegression(rows [][]float64, labels []float64, dim int) (weights []float64, bias float64, iterations int, converged bool) {
	weights = make([]float64, dim)
	n := float64(len(rows))
	lambda := 1.0 / ProbeL2Penalty

	for iterations = 0; iterations < ProbeMaxIterations; iterations++ {
		gradW := make([]float64, dim)
		gradB := 0.0
		for i, row := range rows {
			z := bias
			for j, w := range weights {
				z += w * row[j]
			}
			err := sigmoid(z) - labels[i]
			for j := range gradW {
				gradW[j] += err * row[j]
			}
			gradB += err
		}
		norm := 0.0
		for j := range gradW {
			gradW[j] = gradW[j]/n + lambda*weights[j]
			norm += gradW[j] * gradW[j]
		}
		gradB /= n
		norm = math.Sqrt(norm)

		for j := range weights {
			weights[j] -= probeLearningRate * gradW[j]
		}
		bias -= probeLearningRate * gradB

		if norm < ProbeTolerance {
			converged = true
			iterations++
			break
		}
	}
	return weights, bias, iterations, converged
}
