// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumen-ai/steerkit/internal/refmodel"
	"github.com/lumen-ai/steerkit/pkg/llmhost"
	"github.com/lumen-ai/steerkit/pkg/steermodel"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

func newGenerateCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	var prompt, vectorPath string
	var gain float64
	var hiddenDim, numLayers, maxNewTokens int
	var temperature float64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate against the reference model, optionally with one vector steering it",
		RunE: func(cmd *cobra.Command, args []string) error {
			model := refmodel.New(refmodel.Options{HiddenDim: hiddenDim, NumLayers: numLayers})
			sm, err := steermodel.FromPretrained(model, steermodel.Options{})
			if err != nil {
				return err
			}

			opts := llmhost.GenerationOptions{
				MaxNewTokens: maxNewTokens,
				Temperature:  temperature,
			}

			if vectorPath == "" {
				out, err := sm.Generate(ctx, []string{prompt}, opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out[0])
				return nil
			}

			v, err := steervec.Load(vectorPath)
			if err != nil {
				return fmt.Errorf("load %s: %w", vectorPath, err)
			}
			out, err := sm.GenerateWithSteering(ctx, prompt, v, float32(gain), opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt text (required)")
	cmd.Flags().StringVar(&vectorPath, "vector", "", "path to a saved vector to steer generation with")
	cmd.Flags().Float64Var(&gain, "gain", 1.0, "steering gain applied to --vector")
	cmd.Flags().IntVar(&hiddenDim, "hidden-dim", 32, "reference model hidden dimension")
	cmd.Flags().IntVar(&numLayers, "num-layers", 4, "reference model layer count")
	cmd.Flags().IntVar(&maxNewTokens, "max-new-tokens", 32, "forwarded generation option")
	cmd.Flags().Float64Var(&temperature, "temperature", 1.0, "forwarded generation option")
	cmd.MarkFlagRequired("prompt")
	return cmd
}
