// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package discover

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
)

// TestMeanDifference_SinglePair implements invariant 8: discovery with
// one positive and one negative string succeeds and produces a finite
// vector.
func TestMeanDifference_SinglePair(t *testing.T) {
	model := newFakeModel(4, 2)
	res, err := MeanDifference(context.Background(), model, []string{"good"}, []string{"bad"}, 1, CaptureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range res.Vector.Tensor() {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			t.Fatalf("result vector is not finite: %v", res.Vector.Tensor())
		}
	}
	if res.Vector.Metadata()["method"] != "mean_difference" {
		t.Errorf("metadata[method] = %v, want mean_difference", res.Vector.Metadata()["method"])
	}
	if res.Vector.LayerIndex() != 1 {
		t.Errorf("layer_index = %d, want 1", res.Vector.LayerIndex())
	}
}

func TestMeanDifference_EmptyInput(t *testing.T) {
	model := newFakeModel(4, 2)
	_, err := MeanDifference(context.Background(), model, nil, []string{"bad"}, 0, CaptureOptions{})
	if !errors.Is(err, ErrEmptyContrastSet) {
		t.Fatalf("error = %v, want ErrEmptyContrastSet", err)
	}
}

func TestMeanDifference_InvalidLayer(t *testing.T) {
	model := newFakeModel(4, 2)
	_, err := MeanDifference(context.Background(), model, []string{"a"}, []string{"b"}, 99, CaptureOptions{})
	if !errors.Is(err, ErrInvalidLayer) {
		t.Fatalf("error = %v, want ErrInvalidLayer", err)
	}
}

func TestMeanDifference_PropagatesExternalError(t *testing.T) {
	model := &failingModel{newFakeModel(4, 2)}
	_, err := MeanDifference(context.Background(), model, []string{"a"}, []string{"b"}, 0, CaptureOptions{})
	var ee *ExternalError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want *ExternalError", err)
	}
}

func TestMeanDifference_ProgressCallback(t *testing.T) {
	model := newFakeModel(4, 2)
	var calls []int
	opts := CaptureOptions{BatchSize: 1, Progress: func(done, total int) { calls = append(calls, done) }}
	_, err := MeanDifference(context.Background(), model, []string{"a", "b"}, []string{"c", "d"}, 0, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 4 {
		t.Fatalf("progress calls = %v, want 4 batches of size 1", calls)
	}
	if calls[len(calls)-1] != 4 {
		t.Errorf("final done = %d, want 4", calls[len(calls)-1])
	}
}

func TestMeanDifference_DeterministicAcrossRuns(t *testing.T) {
	model := newFakeModel(4, 2)
	r1, err := MeanDifference(context.Background(), model, []string{"alpha", "beta"}, []string{"gamma", "delta"}, 0, CaptureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := MeanDifference(context.Background(), model, []string{"alpha", "beta"}, []string{"gamma", "delta"}, 0, CaptureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	a, b := r1.Vector.Tensor(), r2.Vector.Tensor()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("discovery is not deterministic: %v vs %v", a, b)
		}
	}
}

// TestMeanDifference_IdenticalListsNearZero implements invariant 9:
// mean-difference applied to positive == negative produces a vector
// whose magnitude is below a small epsilon.
func TestMeanDifference_IdenticalListsNearZero(t *testing.T) {
	model := newFakeModel(4, 1)
	same := []string{"alpha", "beta", "gamma"}
	res, err := MeanDifference(context.Background(), model, same, same, 0, CaptureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Vector.Magnitude() >= 1e-5 {
		t.Errorf("magnitude = %g, want < 1e-5", res.Vector.Magnitude())
	}
}

var _ llmhost.CausalLM = (*fakeModel)(nil)
