// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package steermodel

import "github.com/lumen-ai/steerkit/pkg/llmhost"

// buildInterceptors turns the active-interceptor table into the
// per-layer llmhost.Interceptor map the host model's RunWithInterceptors
// expects. Each closure adds gain*vector to the block's output residual
// stream, broadcasting the hidden_dim-length vector over every position
// in the batch and sequence.
func (sm *SteeringModel) buildInterceptors() map[int]llmhost.Interceptor {
	if len(sm.active) == 0 {
		return nil
	}
	out := make(map[int]llmhost.Interceptor, len(sm.active))
	for layer, entry := range sm.active {
		vec := entry.vector.Tensor()
		gain := entry.gain
		out[layer] = llmhost.InterceptorFunc(func(batch, seqLen, hiddenDim int, residual llmhost.Tensor) llmhost.Tensor {
			modified := residual.Clone()
			for pos := 0; pos < batch*seqLen; pos++ {
				base := pos * hiddenDim
				for d := 0; d < hiddenDim && d < len(vec); d++ {
					modified[base+d] += gain * vec[d]
				}
			}
			return modified
		})
	}
	return out
}
