// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package compose

import (
	"errors"
	"testing"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

func mustVec(t *testing.T, tensor llmhost.Tensor, layer int) *steervec.SteeringVector {
	t.Helper()
	v, err := steervec.New(tensor, layer, "b", "m", nil)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// TestWeightedSum_Identity implements spec scenario S2.
func TestWeightedSum_Identity(t *testing.T) {
	v1 := mustVec(t, llmhost.Tensor{1, 0}, 3)
	v2 := mustVec(t, llmhost.Tensor{0, 1}, 3)

	out, err := WeightedSum([]*steervec.SteeringVector{v1, v2}, []float64{1.0, 0.0}, false)
	if err != nil {
		t.Fatal(err)
	}
	got := out.Tensor()
	if got[0] != 1 || got[1] != 0 {
		t.Errorf("tensor = %v, want [1, 0]", got)
	}
}

func TestWeightedSum_LengthMismatch(t *testing.T) {
	v1 := mustVec(t, llmhost.Tensor{1, 0}, 0)
	_, err := WeightedSum([]*steervec.SteeringVector{v1}, []float64{1, 2}, false)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("error = %v, want ErrLengthMismatch", err)
	}
}

func TestWeightedSum_ShapeMismatch(t *testing.T) {
	v1 := mustVec(t, llmhost.Tensor{1, 0}, 0)
	v2 := mustVec(t, llmhost.Tensor{1, 0, 0}, 0)
	_, err := WeightedSum([]*steervec.SteeringVector{v1, v2}, []float64{1, 1}, false)
	if !errors.Is(err, ErrHiddenDimMismatch) {
		t.Fatalf("error = %v, want ErrHiddenDimMismatch", err)
	}
}

func TestWeightedSum_LayerMismatch(t *testing.T) {
	v1 := mustVec(t, llmhost.Tensor{1, 0}, 0)
	v2 := mustVec(t, llmhost.Tensor{0, 1}, 1)
	_, err := WeightedSum([]*steervec.SteeringVector{v1, v2}, []float64{1, 1}, false)
	if !errors.Is(err, ErrLayerMismatch) {
		t.Fatalf("error = %v, want ErrLayerMismatch", err)
	}
}

func TestWeightedSum_EmptyInput(t *testing.T) {
	_, err := WeightedSum(nil, nil, false)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("error = %v, want ErrEmptyInput", err)
	}
}

// TestCosineSimilarity_SelfIsOne implements invariant 11.
func TestCosineSimilarity_SelfIsOne(t *testing.T) {
	v := mustVec(t, llmhost.Tensor{3, 4}, 0)
	sim, err := CosineSimilarityMatrix([]*steervec.SteeringVector{v})
	if err != nil {
		t.Fatal(err)
	}
	if sim.Matrix[0][0] != 1 {
		t.Errorf("self cosine = %v, want exactly 1", sim.Matrix[0][0])
	}
}

func TestCosineSimilarity_ZeroMagnitudeWarns(t *testing.T) {
	zero := mustVec(t, llmhost.Tensor{0, 0}, 0)
	other := mustVec(t, llmhost.Tensor{1, 0}, 0)
	sim, err := CosineSimilarityMatrix([]*steervec.SteeringVector{zero, other})
	if err != nil {
		t.Fatal(err)
	}
	if sim.Matrix[0][1] != 0 {
		t.Errorf("cosine with zero-magnitude vector = %v, want 0", sim.Matrix[0][1])
	}
	if len(sim.Warnings) != 1 {
		t.Errorf("warnings = %v, want exactly one", sim.Warnings)
	}
}

// TestDetectConflicts_Opposing implements spec scenario S3.
func TestDetectConflicts_Opposing(t *testing.T) {
	v1 := mustVec(t, llmhost.Tensor{1, 0}, 0)
	v2 := mustVec(t, llmhost.Tensor{-1, 0}, 0)

	conflicts, err := DetectConflicts([]*steervec.SteeringVector{v1, v2}, 0.7)
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %+v, want exactly one", conflicts)
	}
	c := conflicts[0]
	if c.I != 0 || c.J != 1 {
		t.Errorf("pair = (%d,%d), want (0,1)", c.I, c.J)
	}
	if c.Kind != ConflictOpposing {
		t.Errorf("kind = %v, want opposing", c.Kind)
	}
	if c.Cosine != -1 {
		t.Errorf("cosine = %v, want -1", c.Cosine)
	}
}

func TestDetectConflicts_DefaultThreshold(t *testing.T) {
	v1 := mustVec(t, llmhost.Tensor{1, 0}, 0)
	v2 := mustVec(t, llmhost.Tensor{0, 1}, 0)
	conflicts, err := DetectConflicts([]*steervec.SteeringVector{v1, v2}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) != 0 {
		t.Errorf("orthogonal vectors should not conflict at default threshold: %+v", conflicts)
	}
}

func TestOrthogonalize_PreservesFirst(t *testing.T) {
	v1 := mustVec(t, llmhost.Tensor{3, 4}, 0)
	v2 := mustVec(t, llmhost.Tensor{1, 0}, 0)

	res, err := Orthogonalize([]*steervec.SteeringVector{v1, v2})
	if err != nil {
		t.Fatal(err)
	}
	got := res.Vectors[0].Tensor()
	want := []float32{0.6, 0.8} // 3,4 normalized
	for i := range want {
		diff := float64(got[i]) - float64(want[i])
		if diff < -1e-6 || diff > 1e-6 {
			t.Errorf("first vector = %v, want %v", got, want)
		}
	}
}

func TestOrthogonalize_FlagsZeroedDuplicate(t *testing.T) {
	v1 := mustVec(t, llmhost.Tensor{1, 0}, 0)
	v2 := mustVec(t, llmhost.Tensor{1, 0}, 0) // parallel to v1

	res, err := Orthogonalize([]*steervec.SteeringVector{v1, v2})
	if err != nil {
		t.Fatal(err)
	}
	if res.Zeroed[0] {
		t.Error("first vector must never be flagged zeroed")
	}
	if !res.Zeroed[1] {
		t.Error("parallel duplicate should be flagged zeroed")
	}
	for _, f := range res.Vectors[1].Tensor() {
		if f != 0 {
			t.Errorf("zeroed vector should have all-zero tensor, got %v", res.Vectors[1].Tensor())
		}
	}
}

func TestOrthogonalize_EmptyInput(t *testing.T) {
	_, err := Orthogonalize(nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("error = %v, want ErrEmptyInput", err)
	}
}

func TestOrthogonalize_SingleVectorIdentity(t *testing.T) {
	v := mustVec(t, llmhost.Tensor{3, 4}, 0)
	res, err := Orthogonalize([]*steervec.SteeringVector{v})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Vectors) != 1 || res.Zeroed[0] {
		t.Errorf("single-vector input should behave as identity: %+v", res)
	}
}
