// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package steervec implements the SteeringVector artifact: an immutable
// direction in a transformer's activation space, bound to the layer it
// was captured at, with a persistence format and the invariants needed to
// re-bind it safely to a model.
package steervec

import (
	"fmt"
	"math"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
)

// magnitudeTolerance is the allowed drift between a stored magnitude and
// the tensor's recomputed L2 norm (spec invariant: 1e-5).
const magnitudeTolerance = 1e-5

// Metadata is free-form descriptive data carried alongside a vector
// (method name, timestamp, dataset description, probe accuracy, ...).
// Values must be strings, float64, bool, or nested Metadata — the same
// restriction the JSON descriptor format imposes.
type Metadata map[string]any

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		if nested, ok := v.(Metadata); ok {
			out[k] = nested.Clone()
			continue
		}
		out[k] = v
	}
	return out
}

// SteeringVector is an immutable-after-construction direction in a
// model's residual stream, bound to the layer it was captured at.
type SteeringVector struct {
	tensor           llmhost.Tensor
	layerIndex       int
	layerName        string
	modelFingerprint string
	hiddenDim        int
	magnitude        float64
	dtype            string
	metadata         Metadata
}

// New constructs a SteeringVector, validating shape, rejecting NaN/Inf,
// computing and caching the magnitude, and freezing a copy of metadata.
func New(tensor llmhost.Tensor, layerIndex int, layerName, modelFingerprint string, meta Metadata) (*SteeringVector, error) {
	return newVector(tensor, layerIndex, layerName, modelFingerprint, "float32", meta)
}

func newVector(tensor llmhost.Tensor, layerIndex int, layerName, modelFingerprint, dtype string, meta Metadata) (*SteeringVector, error) {
	if len(tensor) == 0 {
		return nil, &ValidationError{Op: "New", Err: ErrEmptyTensor}
	}
	if layerIndex < 0 {
		return nil, &ValidationError{Op: "New", Err: ErrNegativeLayer}
	}
	mag := 0.0
	for _, v := range tensor {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &ValidationError{Op: "New", Err: ErrNonFinite}
		}
		mag += f * f
	}
	mag = math.Sqrt(mag)

	if dtype == "" {
		dtype = "float32"
	}

	return &SteeringVector{
		tensor:           tensor.Clone(),
		layerIndex:       layerIndex,
		layerName:        layerName,
		modelFingerprint: modelFingerprint,
		hiddenDim:        len(tensor),
		magnitude:        mag,
		dtype:            dtype,
		metadata:         meta.Clone(),
	}, nil
}

// Tensor returns a copy of the vector's payload. Callers may not mutate
// the original through the returned slice.
func (v *SteeringVector) Tensor() llmhost.Tensor { return v.tensor.Clone() }

// LayerIndex is the ordinal block index this vector was captured at and
// must be re-applied to.
func (v *SteeringVector) LayerIndex() int { return v.layerIndex }

// LayerName is the diagnostic (non-binding) path to the captured block.
func (v *SteeringVector) LayerName() string { return v.layerName }

// ModelFingerprint identifies the model family/size this vector was
// derived from.
func (v *SteeringVector) ModelFingerprint() string { return v.modelFingerprint }

// HiddenDim is the vector's length, redundant with len(Tensor()) but
// cached for fast validation.
func (v *SteeringVector) HiddenDim() int { return v.hiddenDim }

// Magnitude is the cached L2 norm of the tensor.
func (v *SteeringVector) Magnitude() float64 { return v.magnitude }

// Dtype names the numeric element type of the payload as captured
// (float32, float16, bfloat16); steerkit's in-memory math is always in
// float32 regardless of the originating dtype.
func (v *SteeringVector) Dtype() string { return v.dtype }

// Metadata returns a deep copy of the vector's free-form metadata.
func (v *SteeringVector) Metadata() Metadata { return v.metadata.Clone() }

// WithMetadata returns a new SteeringVector identical to v except that
// extra is merged into (and can override) its metadata. The library never
// mutates a vector in place; ToDevice uses this to record the target
// device. Composition and discovery pass their metadata to New directly.
func (v *SteeringVector) WithMetadata(extra Metadata) *SteeringVector {
	merged := v.metadata.Clone()
	if merged == nil {
		merged = Metadata{}
	}
	for k, val := range extra {
		merged[k] = val
	}
	out := *v
	out.tensor = v.tensor.Clone()
	out.metadata = merged
	return &out
}

// Validate reports whether v can be applied to a model with the given
// hidden_dim.
func (v *SteeringVector) Validate(expectedHiddenDim int) error {
	if v.hiddenDim != expectedHiddenDim {
		return &CompatibilityError{
			Expected: expectedHiddenDim,
			Actual:   v.hiddenDim,
			Err:      fmt.Errorf("%w: expected %d, got %d", ErrIncompatibleDim, expectedHiddenDim, v.hiddenDim),
		}
	}
	return nil
}

// CheckInvariants re-verifies the artifact's core invariants: shape
// agreement, magnitude agreement (within magnitudeTolerance), and
// finiteness. Load runs it on every reconstructed vector; New enforces
// the same conditions by construction and does not call it.
func (v *SteeringVector) CheckInvariants() error {
	if len(v.tensor) != v.hiddenDim {
		return &ValidationError{Op: "CheckInvariants", Err: ErrShapeMismatch}
	}
	recomputed := 0.0
	for _, f := range v.tensor {
		ff := float64(f)
		if math.IsNaN(ff) || math.IsInf(ff, 0) {
			return &ValidationError{Op: "CheckInvariants", Err: ErrNonFinite}
		}
		recomputed += ff * ff
	}
	recomputed = math.Sqrt(recomputed)
	if math.Abs(recomputed-v.magnitude) >= magnitudeTolerance {
		return &ValidationError{Op: "CheckInvariants", Err: fmt.Errorf("magnitude drift: stored %g, recomputed %g", v.magnitude, recomputed)}
	}
	return nil
}

// ToDevice returns the same logical vector, annotated with the compute
// device it is now bound to. steerkit keeps all tensors as plain
// in-process float32 slices, so this is metadata-only plus a tensor copy
// — there is no real cross-device transfer to perform.
func (v *SteeringVector) ToDevice(device string) *SteeringVector {
	return v.WithMetadata(Metadata{"device": device})
}
