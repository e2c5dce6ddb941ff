// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package refmodel

import (
	"context"
	"testing"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
)

func TestCaptureActivations_Deterministic(t *testing.T) {
	m := New(Options{HiddenDim: 8, NumLayers: 2})
	a, err := m.CaptureActivations(context.Background(), []string{"hello world"}, 0, 16)
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.CaptureActivations(context.Background(), []string{"hello world"}, 0, 16)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("CaptureActivations is not deterministic: %v vs %v", a, b)
		}
	}
}

func TestCaptureActivations_LayerOutOfRange(t *testing.T) {
	m := New(Options{HiddenDim: 8, NumLayers: 2})
	_, err := m.CaptureActivations(context.Background(), []string{"x"}, 5, 16)
	if err == nil {
		t.Fatal("expected error for out-of-range layer")
	}
}

func TestRunWithInterceptors_NoOpWithoutInterceptors(t *testing.T) {
	m := New(Options{HiddenDim: 8, NumLayers: 2})
	out1, err := m.RunWithInterceptors(context.Background(), []string{"Hello"}, llmhost.GenerationOptions{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	out2, err := m.RunWithInterceptors(context.Background(), []string{"Hello"}, llmhost.GenerationOptions{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out1[0] != out2[0] {
		t.Errorf("RunWithInterceptors without interceptors is not deterministic: %q vs %q", out1[0], out2[0])
	}
}

func TestWhitespaceTokenizer_RoundTripsLength(t *testing.T) {
	tok := whitespaceTokenizer{}
	ids, mask, err := tok.Encode([]string{"go is fun"}, 16)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids[0]) != 3 || len(mask[0]) != 3 {
		t.Fatalf("ids/mask = %v/%v, want length 3", ids, mask)
	}
	decoded, err := tok.Decode(ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if decoded == "" {
		t.Error("Decode returned empty string")
	}
}
