// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package steermodel

import (
	"context"
	"fmt"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
)

// fakeModel is a deterministic in-memory causal LM used only by this
// package's tests. Generation is a stand-in: it deterministically
// "decodes" a prompt by echoing it back annotated with the summed output
// of every active interceptor, so tests can assert on steering effects
// without a real forward pass.
type fakeModel struct {
	hiddenDim int
	blocks    []llmhost.Block
	device    string
}

type fakeBlock struct{ name string }

func (b fakeBlock) Name() string { return b.name }

func newFakeModel(hiddenDim, numLayers int) *fakeModel {
	blocks := make([]llmhost.Block, numLayers)
	for i := range blocks {
		blocks[i] = fakeBlock{name: "model.layers." + string(rune('0'+i))}
	}
	return &fakeModel{hiddenDim: hiddenDim, blocks: blocks, device: "cpu"}
}

func (m *fakeModel) Architecture() string         { return "fake" }
func (m *fakeModel) HiddenDim() int               { return m.hiddenDim }
func (m *fakeModel) Blocks() []llmhost.Block      { return m.blocks }
func (m *fakeModel) Tokenizer() llmhost.Tokenizer { return nil }
func (m *fakeModel) Device() string               { return m.device }

// RunWithInterceptors ignores sampling entirely (there is no real
// generation loop here) and instead runs every interceptor once over a
// single synthetic position so Generate's output deterministically
// reflects whether steering is active, letting S4 assert equality
// between steered-with-zero-gain and bare-model output.
func (m *fakeModel) RunWithInterceptors(ctx context.Context, prompts []string, opts llmhost.GenerationOptions, interceptors map[int]llmhost.Interceptor) ([]string, error) {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		total := float32(0)
		for layer, ic := range interceptors {
			residual := make(llmhost.Tensor, m.hiddenDim)
			modified := ic.Apply(1, 1, m.hiddenDim, residual)
			for _, f := range modified {
				total += f
			}
			_ = layer
		}
		out[i] = fmt.Sprintf("%s|%g", p, total)
	}
	return out, nil
}

func (m *fakeModel) CaptureActivations(ctx context.Context, prompts []string, layerIndex int, maxLength int) ([]llmhost.Tensor, error) {
	out := make([]llmhost.Tensor, len(prompts))
	for i := range prompts {
		out[i] = make(llmhost.Tensor, m.hiddenDim)
	}
	return out, nil
}

var _ llmhost.CausalLM = (*fakeModel)(nil)
