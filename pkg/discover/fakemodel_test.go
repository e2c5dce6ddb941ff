// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package discover

import (
	"context"
	"errors"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
)

// fakeModel is a deterministic in-memory stand-in for a loaded causal LM,
// used only by this package's tests. CaptureActivations derives a
// reproducible pseudo-activation from each prompt's bytes so the same
// input always yields the same vector, without needing a real forward
// pass.
type fakeModel struct {
	hiddenDim int
	blocks    []llmhost.Block
}

type fakeBlock struct{ name string }

func (b fakeBlock) Name() string { return b.name }

func newFakeModel(hiddenDim, numLayers int) *fakeModel {
	blocks := make([]llmhost.Block, numLayers)
	for i := range blocks {
		blocks[i] = fakeBlock{name: "model.layers." + string(rune('0'+i))}
	}
	return &fakeModel{hiddenDim: hiddenDim, blocks: blocks}
}

func (m *fakeModel) Architecture() string        { return "fake" }
func (m *fakeModel) HiddenDim() int              { return m.hiddenDim }
func (m *fakeModel) Blocks() []llmhost.Block     { return m.blocks }
func (m *fakeModel) Tokenizer() llmhost.Tokenizer { return nil }
func (m *fakeModel) Device() string              { return "cpu" }

func (m *fakeModel) RunWithInterceptors(ctx context.Context, prompts []string, opts llmhost.GenerationOptions, interceptors map[int]llmhost.Interceptor) ([]string, error) {
	return nil, errors.New("fakeModel: RunWithInterceptors not used by discovery tests")
}

func (m *fakeModel) CaptureActivations(ctx context.Context, prompts []string, layerIndex int, maxLength int) ([]llmhost.Tensor, error) {
	out := make([]llmhost.Tensor, len(prompts))
	for i, p := range prompts {
		out[i] = m.embed(p, layerIndex)
	}
	return out, nil
}

func (m *fakeModel) embed(s string, layer int) llmhost.Tensor {
	t := make(llmhost.Tensor, m.hiddenDim)
	for i := 0; i < len(s); i++ {
		t[i%m.hiddenDim] += float32(s[i])
	}
	n := float32(len(s) + 1)
	for j := range t {
		t[j] /= n
	}
	t[0] += float32(layer) * 0.01
	return t
}

// failingModel reports an error from every CaptureActivations call, to
// exercise the discovery methods' error-wrapping paths.
type failingModel struct{ *fakeModel }

func (m *failingModel) CaptureActivations(ctx context.Context, prompts []string, layerIndex int, maxLength int) ([]llmhost.Tensor, error) {
	return nil, errors.New("forward pass failed")
}
