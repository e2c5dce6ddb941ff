// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package llmhost defines the boundary between steerkit and the host
// deep-learning framework. The transformer model, its tokenizer, and the
// framework that runs them are external collaborators: steerkit does not
// implement a transformer or a tokenizer, it only describes the contract a
// caller's loaded model must satisfy in order to be steered.
package llmhost

import "context"

// Tensor is a 1-D, real-valued activation or steering-vector payload. All
// arithmetic in steerkit operates on float32; callers are responsible for
// converting from whatever dtype their framework used at capture time.
type Tensor []float32

// Clone returns a copy of t so callers can hand out tensors without
// aliasing internal state.
func (t Tensor) Clone() Tensor {
	if t == nil {
		return nil
	}
	out := make(Tensor, len(t))
	copy(out, t)
	return out
}

// Block is one transformer sub-stack (self-attention + feed-forward +
// residual connections) addressed by ordinal index. steerkit only names
// blocks; running them is the CausalLM's job, and an Interceptor sees a
// block's output residual stream through RunWithInterceptors.
type Block interface {
	// Name is a human-readable path to the block (e.g. "model.layers.6").
	Name() string
}

// GenerationOptions mirrors the generation parameters steerkit forwards,
// unmodified, to the host framework's generation call. steerkit never
// introduces new generation parameters of its own.
type GenerationOptions struct {
	MaxNewTokens      int
	MaxLength         int
	Temperature       float64
	TopP              float64
	TopK              int
	DoSample          bool
	NumBeams          int
	RepetitionPenalty float64
}

// Tokenizer turns text into token ids and back. Padding side and special
// tokens are entirely the tokenizer's own defaults; steerkit does not
// second-guess them.
type Tokenizer interface {
	// Encode tokenizes a batch of strings, truncating to maxLength and
	// padding to the longest sequence in the batch. It returns token ids
	// and a same-shaped mask that is 1 for real tokens and 0 for padding.
	Encode(texts []string, maxLength int) (ids [][]int, mask [][]int, err error)
	// Decode turns a sequence of token ids back into text.
	Decode(ids []int) (string, error)
}

// CausalLM is a loaded, decoder-only causal language model: a residual
// stream of ordered Blocks plus a way to run the full forward/generation
// path with a set of interceptors active.
type CausalLM interface {
	// Architecture reports the architecture tag used to look the model up
	// in steerkit's architecture registry (e.g. "llama", "gpt-neox").
	Architecture() string

	// HiddenDim is the residual-stream width of this model.
	HiddenDim() int

	// Blocks returns the ordered list of transformer blocks. len(Blocks())
	// is the model's layer count; layer_index indexes into this slice.
	Blocks() []Block

	// Tokenizer returns the model's paired tokenizer.
	Tokenizer() Tokenizer

	// Device reports the compute device the model's parameters live on
	// (e.g. "cpu", "cuda:0"). Used to decide whether a vector needs to be
	// moved before it can be added to this model's activations.
	Device() string

	// RunWithInterceptors tokenizes prompts, runs the model's own
	// generation loop with the given per-layer interceptors installed for
	// the duration of the call, and returns the decoded completions in
	// the same order as the prompts. Interceptors are removed by the
	// implementation before returning, including on error — the same
	// guarantee steerkit's own one-shot API makes at the Go level.
	RunWithInterceptors(ctx context.Context, prompts []string, opts GenerationOptions, interceptors map[int]Interceptor) ([]string, error)

	// CaptureActivations runs a single forward pass (no generation, no
	// gradient tracking) over the given prompts and returns, for each
	// prompt, the target block's output residual stream mean-pooled over
	// non-padding positions — the shared primitive every Discovery method
	// builds on. The returned slice has one Tensor of length HiddenDim()
	// per prompt, in input order.
	CaptureActivations(ctx context.Context, prompts []string, layerIndex int, maxLength int) ([]Tensor, error)
}

// Interceptor is the per-call hook steerkit installs on a block. Apply
// receives the block's raw output residual stream for one forward pass,
// flattened row-major as (batch*seqLen*hiddenDim), and returns the
// modified tensor in the same shape. Implementations must not retain the
// slice they are given beyond the call.
type Interceptor interface {
	Apply(batch, seqLen, hiddenDim int, residual Tensor) Tensor
}

// InterceptorFunc adapts a plain function to Interceptor.
type InterceptorFunc func(batch, seqLen, hiddenDim int, residual Tensor) Tensor

// Apply implements Interceptor.
func (f InterceptorFunc) Apply(batch, seqLen, hiddenDim int, residual Tensor) Tensor {
	return f(batch, seqLen, hiddenDim, residual)
}
