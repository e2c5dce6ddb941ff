// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package refmodel implements a small, fully deterministic in-memory
// stand-in for a loaded causal LM. It satisfies pkg/llmhost.CausalLM so
// the CLI's demo commands and the steerkit test suites have something
// concrete to discover and steer against without a real transformer
// forward pass, which stays out of steerkit's scope.
package refmodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
)

// Options configures New.
type Options struct {
	// Architecture is the tag reported by Architecture(); must be
	// registered in pkg/steermodel's architecture registry for
	// FromPretrained to accept this model. Defaults to "fake".
	Architecture string

	// HiddenDim is the residual-stream width. Defaults to 32.
	HiddenDim int

	// NumLayers is the block count. Defaults to 4.
	NumLayers int
}

func (o Options) withDefaults() Options {
	if o.Architecture == "" {
		o.Architecture = "fake"
	}
	if o.HiddenDim <= 0 {
		o.HiddenDim = 32
	}
	if o.NumLayers <= 0 {
		o.NumLayers = 4
	}
	return o
}

// Model is the reference CausalLM.
type Model struct {
	arch      string
	hiddenDim int
	blocks    []llmhost.Block
	tokenizer llmhost.Tokenizer
}

type block struct{ name string }

func (b block) Name() string { return b.name }

// New builds a reference model with the given options.
func New(opts Options) *Model {
	opts = opts.withDefaults()
	blocks := make([]llmhost.Block, opts.NumLayers)
	for i := range blocks {
		blocks[i] = block{name: fmt.Sprintf("model.layers.%d", i)}
	}
	return &Model{
		arch:      opts.Architecture,
		hiddenDim: opts.HiddenDim,
		blocks:    blocks,
		tokenizer: whitespaceTokenizer{},
	}
}

func (m *Model) Architecture() string         { return m.arch }
func (m *Model) HiddenDim() int               { return m.hiddenDim }
func (m *Model) Blocks() []llmhost.Block      { return m.blocks }
func (m *Model) Tokenizer() llmhost.Tokenizer { return m.tokenizer }
func (m *Model) Device() string               { return "cpu" }

// CaptureActivations derives a reproducible pseudo-activation from each
// prompt's byte content, folded across hiddenDim buckets and scaled so
// unrelated strings land at noticeably different points in the
// hidden-dim space. The same input always produces the same vector.
func (m *Model) CaptureActivations(ctx context.Context, prompts []string, layerIndex int, maxLength int) ([]llmhost.Tensor, error) {
	if layerIndex < 0 || layerIndex >= len(m.blocks) {
		return nil, fmt.Errorf("refmodel: layer_index %d out of range [0, %d)", layerIndex, len(m.blocks))
	}
	out := make([]llmhost.Tensor, len(prompts))
	for i, p := range prompts {
		out[i] = m.embed(truncate(p, maxLength), layerIndex)
	}
	return out, nil
}

// RunWithInterceptors runs a minimal synthetic generation loop: it
// appends a fixed continuation token to the prompt, routing that token's
// embedding through every active interceptor first so the decoded
// output visibly reflects whichever vectors are steering the model. With
// no interceptors active the continuation is the bare model's fixed
// default, matching the no-op steering guarantee callers rely on.
func (m *Model) RunWithInterceptors(ctx context.Context, prompts []string, opts llmhost.GenerationOptions, interceptors map[int]llmhost.Interceptor) ([]string, error) {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = p + m.continuation(interceptors)
	}
	return out, nil
}

func (m *Model) continuation(interceptors map[int]llmhost.Interceptor) string {
	residual := make(llmhost.Tensor, m.hiddenDim)
	for _, ic := range interceptors {
		residual = ic.Apply(1, 1, m.hiddenDim, residual)
	}
	var sum float32
	for _, f := range residual {
		sum += f
	}
	if sum == 0 {
		return " ..."
	}
	if sum > 0 {
		return " [steered+]"
	}
	return " [steered-]"
}

func (m *Model) embed(s string, layer int) llmhost.Tensor {
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

func truncate(s string, maxLength int) string {
	words := strings.Fields(s)
	if maxLength <= 0 || len(words) <= maxLength {
		return s
	}
	return strings.Join(words[:maxLength], " ")
}

// whitespaceTokenizer is a minimal Tokenizer good enough for a reference
// model that never runs a real forward pass: ids are byte lengths of
// each whitespace-split word, which is enough to round-trip through
// Encode/Decode deterministically. Encode truncates to maxLength but does
// not pad: each row is as long as its own text and its mask is all ones.
type whitespaceTokenizer struct{}

func (whitespaceTokenizer) Encode(texts []string, maxLength int) (ids [][]int, mask [][]int, err error) {
	ids = make([][]int, len(texts))
	mask = make([][]int, len(texts))
	for i, text := range texts {
		words := strings.Fields(text)
		if maxLength > 0 && len(words) > maxLength {
			words = words[:maxLength]
		}
		row := make([]int, len(words))
		m := make([]int, len(words))
		for j, w := range words {
			row[j] = len(w)
			m[j] = 1
		}
		ids[i] = row
		mask[i] = m
	}
	return ids, mask, nil
}

func (whitespaceTokenizer) Decode(ids []int) (string, error) {
	words := make([]string, len(ids))
	for i, n := range ids {
		words[i] = strings.Repeat("x", n)
	}
	return strings.Join(words, " "), nil
}

var _ llmhost.CausalLM = (*Model)(nil)
