// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumen-ai/steerkit/internal/refmodel"
	"github.com/lumen-ai/steerkit/internal/tui"
	"github.com/lumen-ai/steerkit/pkg/steermodel"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

func newApplyCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	var vectorPaths []string
	var gains []float64
	var hiddenDim, numLayers int
	var interactive bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply one or more steering vectors to the reference model and list active steering",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(gains) != 0 && len(gains) != len(vectorPaths) {
				return fmt.Errorf("--gain count (%d) must match --vector count (%d)", len(gains), len(vectorPaths))
			}

			model := refmodel.New(refmodel.Options{HiddenDim: hiddenDim, NumLayers: numLayers})
			sm, err := steermodel.FromPretrained(model, steermodel.Options{})
			if err != nil {
				return err
			}

			vectors := make([]*steervec.SteeringVector, len(vectorPaths))
			for i, p := range vectorPaths {
				v, err := steervec.Load(p)
				if err != nil {
					return fmt.Errorf("load %s: %w", p, err)
				}
				vectors[i] = v
			}

			var appliedGains []float32
			if interactive {
				picked, err := tui.RunVectorPicker(vectorPaths, vectors)
				if err != nil {
					return err
				}
				if picked.Action != "apply" {
					fmt.Fprintln(cmd.ErrOrStderr(), "cancelled")
					return nil
				}
				selected := make([]*steervec.SteeringVector, 0, len(picked.Selected))
				for _, name := range picked.Selected {
					for i, p := range vectorPaths {
						if p == name {
							selected = append(selected, vectors[i])
						}
					}
				}
				vectors = selected
				appliedGains = picked.Gains
			} else {
				appliedGains = make([]float32, len(vectorPaths))
				for i := range vectorPaths {
					g := float32(1.0)
					if len(gains) > i {
						g = float32(gains[i])
					}
					appliedGains[i] = g
				}
			}

			if err := sm.ApplyMultipleSteering(vectors, appliedGains); err != nil {
				return err
			}

			active := sm.ListActiveSteering()
			if ro.JSONOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(active)
			}
			for _, a := range active {
				fmt.Fprintf(cmd.OutOrStdout(), "layer %d: gain %.2f, magnitude %.4f\n", a.Layer, a.Gain, a.Magnitude)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&vectorPaths, "vector", nil, "path to a saved vector (repeatable)")
	cmd.Flags().Float64SliceVar(&gains, "gain", nil, "gain matching each --vector, in order (default 1.0 each)")
	cmd.Flags().IntVar(&hiddenDim, "hidden-dim", 32, "reference model hidden dimension")
	cmd.Flags().IntVar(&numLayers, "num-layers", 4, "reference model layer count")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "choose vectors and gains from a terminal UI instead of --gain")
	cmd.MarkFlagRequired("vector")
	return cmd
}
