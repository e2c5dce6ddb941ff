// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package steermodel

import "github.com/lumen-ai/steerkit/pkg/steervec"

// ApplySteering validates vector against the model's hidden_dim and
// registers it at vector.LayerIndex() with the given gain. It fails with
// a *CompatibilityError on dimension mismatch and a *StateError if a
// vector is already registered at that layer — callers must RemoveSteering
// first, which prevents a silent overwrite of an existing interceptor.
func (sm *SteeringModel) ApplySteering(vector *steervec.SteeringVector, gain float32) error {
	if err := vector.Validate(sm.model.HiddenDim()); err != nil {
		return &CompatibilityError{
			Op:       "ApplySteering",
			Expected: sm.model.HiddenDim(),
			Actual:   vector.HiddenDim(),
			Err:      ErrHiddenDimMismatch,
		}
	}
	layer := vector.LayerIndex()
	if _, ok := sm.active[layer]; ok {
		return &StateError{Op: "ApplySteering", Err: ErrAlreadyRegistered}
	}

	moved := vector.ToDevice(sm.model.Device())
	sm.active[layer] = activeEntry{vector: moved, gain: gain}
	sm.metrics.activeLayerGauge.WithLabelValues(sm.sessionID).Set(float64(len(sm.active)))
	return nil
}

// RemoveSteering removes the interceptor at layer, if any; it is
// idempotent: removing an absent entry succeeds silently. If layer is
// nil, every active interceptor is removed and the installed-callback
// count afterward is guaranteed zero.
func (sm *SteeringModel) RemoveSteering(layer *int) {
	if layer == nil {
		sm.active = make(map[int]activeEntry)
	} else {
		delete(sm.active, *layer)
	}
	sm.metrics.activeLayerGauge.WithLabelValues(sm.sessionID).Set(float64(len(sm.active)))
}

// ListActiveSteering returns a read-only snapshot of the active-interceptor
// table, one entry per registered layer.
func (sm *SteeringModel) ListActiveSteering() []ActiveSteering {
	out := make([]ActiveSteering, 0, len(sm.active))
	for layer, entry := range sm.active {
		out = append(out, ActiveSteering{
			Layer:            layer,
			Gain:             entry.gain,
			Magnitude:        entry.vector.Magnitude(),
			ModelFingerprint: entry.vector.ModelFingerprint(),
		})
	}
	return out
}

// ApplyMultipleSteering applies each (vector, gain) pair in order. On the
// first failure it rolls back every entry this call added — pre-existing
// entries are left untouched — and returns the failure.
func (sm *SteeringModel) ApplyMultipleSteering(vectors []*steervec.SteeringVector, gains []float32) error {
	if len(vectors) != len(gains) {
		return &ValidationError{Op: "ApplyMultipleSteering", Err: errLengthMismatch}
	}


	added := make([]int, 0, len(vectors))
	for i, v := range vectors {
		if err := sm.ApplySteering(v, gains[i]); err != nil {
			for _, layer := range added {
				sm.RemoveSteering(&layer)
			}
			return err
		}
		layer := v.LayerIndex()
		added = append(added, layer)
	}
	return nil
}
