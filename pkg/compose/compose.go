// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package compose implements stateless math over collections of
// SteeringVectors: weighted combination, pairwise cosine similarity,
// conflict detection, and Gram-Schmidt orthogonalization. Every operation
// here runs in the dtype of its inputs (float32, widened to float64 only
// for intermediate sums to keep accumulation stable) and never mutates an
// input vector — composition always returns new vectors.
package compose

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

// DefaultConflictThreshold is the |cosine| cutoff DetectConflicts uses
// when the caller does not supply one.
const DefaultConflictThreshold = 0.7

// zeroNormEpsilon is the norm below which a vector is treated as
// numerically zero by Orthogonalize.
const zeroNormEpsilon = 1e-8

func checkSameShape(op string, vectors []*steervec.SteeringVector) error {
	if len(vectors) == 0 {
		return &ValidationError{Op: op, Err: ErrEmptyInput}
	}
	var errs *multierror.Error
	dim := vectors[0].HiddenDim()
	layer := vectors[0].LayerIndex()
	for i, v := range vectors[1:] {
		if v.HiddenDim() != dim {
			errs = multierror.Append(errs, fmt.Errorf("vector %d: hidden_dim %d != %d: %w", i+1, v.HiddenDim(), dim, ErrHiddenDimMismatch))
		}
		if v.LayerIndex() != layer {
			errs = multierror.Append(errs, fmt.Errorf("vector %d: layer_index %d != %d: %w", i+1, v.LayerIndex(), layer, ErrLayerMismatch))
		}
	}
	if errs != nil {
		return &ValidationError{Op: op, Err: errs.ErrorOrNil()}
	}
	return nil
}

// WeightedSum computes sum(weights[i] * vectors[i]). All vectors must
// share hidden_dim and layer_index; len(weights) must equal
// len(vectors). Zero weights are permitted. If normalize is true the
// result is scaled to unit L2 norm (a zero-length result stays zero).
// The returned vector's metadata records the composition kind
// ("weighted_sum"), whether it was normalized, and the number of inputs;
// the individual weights are not recorded.
func WeightedSum(vectors []*steervec.SteeringVector, weights []float64, normalize bool) (*steervec.SteeringVector, error) {
	if err := checkSameShape("WeightedSum", vectors); err != nil {
		return nil, err
	}
	if len(weights) != len(vectors) {
		return nil, &ValidationError{Op: "WeightedSum", Err: ErrLengthMismatch}
	}

	dim := vectors[0].HiddenDim()
	acc := make([]float64, dim)
	for i, v := range vectors {
		t := v.Tensor()
		w := weights[i]
		for j, f := range t {
			acc[j] += w * float64(f)
		}
	}

	out := make(llmhost.Tensor, dim)
	for j, f := range acc {
		out[j] = float32(f)
	}

	if normalize {
		norm := 0.0
		for _, f := range out {
			norm += float64(f) * float64(f)
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			for j := range out {
				out[j] = float32(float64(out[j]) / norm)
			}
		}
	}

	weightsCopy := make([]any, len(weights))
	for i, w := range weights {
		weightsCopy[i] = w
	}

	v, err := steervec.New(out, vectors[0].LayerIndex(), vectors[0].LayerName(), vectors[0].ModelFingerprint(), steervec.Metadata{
		"composition": "weighted_sum",
		"normalized":  normalize,
		"num_inputs":  float64(len(vectors)),
	})
	if err != nil {
		return nil, &ValidationError{Op: "WeightedSum", Err: err}
	}
	return v, nil
}

// SimilarityMatrix is the result of CosineSimilarityMatrix: an n×n
// symmetric matrix of pairwise cosines, plus any warnings raised for
// zero-magnitude inputs (whose similarity with anything is reported as 0
// rather than NaN).
type SimilarityMatrix struct {
	Matrix   [][]float64
	Warnings []string
}

func cosine(a, b *steervec.SteeringVector) (float64, bool) {
	at, bt := a.Tensor(), b.Tensor()
	dot := 0.0
	for i := range at {
		dot += float64(at[i]) * float64(bt[i])
	}
	ma, mb := a.Magnitude(), b.Magnitude()
	if ma == 0 || mb == 0 {
		return 0, false
	}
	return dot / (ma * mb), true
}

// CosineSimilarityMatrix returns the n×n symmetric matrix of pairwise
// cosine similarities. Diagonal entries are exactly 1. A zero-magnitude
// vector makes every similarity involving it undefined; those entries
// are reported as 0 with a warning recorded instead of failing.
func CosineSimilarityMatrix(vectors []*steervec.SteeringVector) (SimilarityMatrix, error) {
	if err := checkSameShape("CosineSimilarityMatrix", vectors); err != nil {
		return SimilarityMatrix{}, err
	}

	n := len(vectors)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	var warnings []string

	for i := 0; i < n; i++ {
		m[i][i] = 1
		for j := i + 1; j < n; j++ {
			c, ok := cosine(vectors[i], vectors[j])
			if !ok {
				warnings = append(warnings, fmt.Sprintf("cosine(%d,%d) undefined: zero-magnitude vector", i, j))
				c = 0
			}
			m[i][j] = c
			m[j][i] = c
		}
	}

	return SimilarityMatrix{Matrix: m, Warnings: warnings}, nil
}

// ConflictKind classifies a detected conflict by the sign of its cosine.
type ConflictKind string

const (
	// ConflictAligned marks a pair with cosine >= +threshold.
	ConflictAligned ConflictKind = "aligned"
	// ConflictOpposing marks a pair with cosine <= -threshold.
	ConflictOpposing ConflictKind = "opposing"
)

// ConflictPair is one entry of DetectConflicts' report.
type ConflictPair struct {
	I, J   int
	Cosine float64
	Kind   ConflictKind
}

// DetectConflicts scans the off-diagonal pairwise cosine similarities of
// vectors and reports every pair with |cosine| >= threshold. If
// threshold <= 0, DefaultConflictThreshold is used.
func DetectConflicts(vectors []*steervec.SteeringVector, threshold float64) ([]ConflictPair, error) {
	if threshold <= 0 {
		threshold = DefaultConflictThreshold
	}
	sim, err := CosineSimilarityMatrix(vectors)
	if err != nil {
		return nil, err
	}

	var conflicts []ConflictPair
	n := len(vectors)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := sim.Matrix[i][j]
			if c >= threshold {
				conflicts = append(conflicts, ConflictPair{I: i, J: j, Cosine: c, Kind: ConflictAligned})
			} else if c <= -threshold {
				conflicts = append(conflicts, ConflictPair{I: i, J: j, Cosine: c, Kind: ConflictOpposing})
			}
		}
	}
	return conflicts, nil
}

// OrthogonalizeResult is the output of Orthogonalize: one vector per
// input, in input order, plus a parallel Zeroed flag marking entries that
// became numerically zero (norm below 1e-8) after projecting out the
// earlier vectors' directions.
type OrthogonalizeResult struct {
	Vectors []*steervec.SteeringVector
	Zeroed  []bool
}

// Orthogonalize runs Gram-Schmidt over vectors in input order, preserving
// the first vector's direction unchanged. A vector that becomes
// numerically zero after projection is kept as a zero vector and flagged
// in Zeroed rather than causing a failure.
func Orthogonalize(vectors []*steervec.SteeringVector) (OrthogonalizeResult, error) {
	if err := checkSameShape("Orthogonalize", vectors); err != nil {
		return OrthogonalizeResult{}, err
	}

	dim := vectors[0].HiddenDim()
	basis := make([][]float64, 0, len(vectors))
	result := OrthogonalizeResult{
		Vectors: make([]*steervec.SteeringVector, len(vectors)),
		Zeroed:  make([]bool, len(vectors)),
	}

	for i, v := range vectors {
		t := v.Tensor()
		cur := make([]float64, dim)
		for j, f := range t {
			cur[j] = float64(f)
		}

		for _, b := range basis {
			dot := 0.0
			for j := range cur {
				dot += cur[j] * b[j]
			}
			for j := range cur {
				cur[j] -= dot * b[j]
			}
		}

		norm := 0.0
		for _, f := range cur {
			norm += f * f
		}
		norm = math.Sqrt(norm)

		out := make(llmhost.Tensor, dim)
		zeroed := norm < zeroNormEpsilon
		if !zeroed {
			for j := range cur {
				out[j] = float32(cur[j] / norm)
			}
			unit := make([]float64, dim)
			for j := range cur {
				unit[j] = cur[j] / norm
			}
			basis = append(basis, unit)
		}
		// zeroed entries stay all-zero and do not join the basis.

		nv, err := steervec.New(out, v.LayerIndex(), v.LayerName(), v.ModelFingerprint(), steervec.Metadata{
			"composition": "orthogonalize",
			"source_index": float64(i),
			"zeroed":       zeroed,
		})
		if err != nil {
			// An all-zero tensor passes steervec.New; its non-empty
			// check fails only for dim zero, which cannot occur because
			// every input vector was itself built by steervec.New. Any
			// failure here is unexpected.
			return OrthogonalizeResult{}, &ValidationError{Op: "Orthogonalize", Err: err}
		}
		result.Vectors[i] = nv
		result.Zeroed[i] = zeroed
	}

	return result, nil
}
