// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package steervec

import (
	"errors"
	"math"
	"testing"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
)

func TestNew_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		tensor  llmhost.Tensor
		layer   int
		wantErr error
	}{
		{"valid", llmhost.Tensor{1, 2, 3, 4}, 6, nil},
		{"empty", llmhost.Tensor{}, 0, ErrEmptyTensor},
		{"nil", nil, 0, ErrEmptyTensor},
		{"negative layer", llmhost.Tensor{1}, -1, ErrNegativeLayer},
		{"nan", llmhost.Tensor{1, float32(math.NaN())}, 0, ErrNonFinite},
		{"inf", llmhost.Tensor{1, float32(math.Inf(1))}, 0, ErrNonFinite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := New(tt.tensor, tt.layer, "block", "m", nil)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("New() error = %v, want nil", err)
				}
				if len(v.Tensor()) != v.HiddenDim() {
					t.Errorf("len(tensor) = %d, hidden_dim = %d", len(v.Tensor()), v.HiddenDim())
				}
				if math.Abs(v.Magnitude()-l2norm(tt.tensor)) >= magnitudeTolerance {
					t.Errorf("magnitude = %g, want %g", v.Magnitude(), l2norm(tt.tensor))
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func l2norm(t llmhost.Tensor) float64 {
	sum := 0.0
	for _, v := range t {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func TestValidate(t *testing.T) {
	v, err := New(llmhost.Tensor{1, 2, 3}, 0, "b", "m", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Validate(3); err != nil {
		t.Errorf("Validate(3) = %v, want nil", err)
	}
	err = v.Validate(4)
	if err == nil {
		t.Fatal("Validate(4) = nil, want error")
	}
	var ce *CompatibilityError
	if !errors.As(err, &ce) {
		t.Fatalf("error is not a *CompatibilityError: %v", err)
	}
	if ce.Expected != 4 || ce.Actual != 3 {
		t.Errorf("CompatibilityError = %+v", ce)
	}
}

func TestWithMetadata_DoesNotMutateOriginal(t *testing.T) {
	v, err := New(llmhost.Tensor{1, 0}, 0, "b", "m", Metadata{"method": "mean_difference"})
	if err != nil {
		t.Fatal(err)
	}
	v2 := v.WithMetadata(Metadata{"gain": 1.5})

	if _, ok := v.Metadata()["gain"]; ok {
		t.Error("original vector metadata was mutated")
	}
	if v2.Metadata()["method"] != "mean_difference" {
		t.Error("WithMetadata must preserve existing metadata entries")
	}
	if v2.Metadata()["gain"] != 1.5 {
		t.Error("WithMetadata must add the new entry")
	}
}

func TestToDevice(t *testing.T) {
	v, err := New(llmhost.Tensor{1, 2}, 0, "b", "m", nil)
	if err != nil {
		t.Fatal(err)
	}
	moved := v.ToDevice("cuda:0")
	if moved.Metadata()["device"] != "cuda:0" {
		t.Errorf("ToDevice did not record device in metadata")
	}
	if len(moved.Tensor()) != len(v.Tensor()) {
		t.Errorf("ToDevice must preserve tensor contents")
	}
}
