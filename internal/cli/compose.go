// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumen-ai/steerkit/pkg/compose"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

func newComposeCmd(ro *RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Combine, compare, or orthogonalize saved steering vectors",
	}
	cmd.AddCommand(newComposeSumCmd(ro))
	cmd.AddCommand(newComposeSimilarityCmd(ro))
	cmd.AddCommand(newComposeConflictsCmd(ro))
	cmd.AddCommand(newComposeOrthogonalizeCmd(ro))
	return cmd
}

func loadVectors(paths []string) ([]*steervec.SteeringVector, error) {
	vectors := make([]*steervec.SteeringVector, len(paths))
	for i, p := range paths {
		v, err := steervec.Load(p)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}

func newComposeSumCmd(ro *RootOpts) *cobra.Command {
	var paths []string
	var weights []float64
	var normalize bool
	var out string

	cmd := &cobra.Command{
		Use:   "sum",
		Short: "Compute a weighted sum of vectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			vectors, err := loadVectors(paths)
			if err != nil {
				return err
			}
			if len(weights) == 0 {
				weights = make([]float64, len(vectors))
				for i := range weights {
					weights[i] = 1
				}
			}
			result, err := compose.WeightedSum(vectors, weights, normalize)
			if err != nil {
				return err
			}
			if out != "" {
				if err := result.Save(out); err != nil {
					return fmt.Errorf("save result: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "weighted sum: layer %d, magnitude %.4f\n", result.LayerIndex(), result.Magnitude())
			if out != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "saved to %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&paths, "vector", nil, "path to a saved vector (repeatable)")
	cmd.Flags().Float64SliceVar(&weights, "weight", nil, "weight matching each --vector, in order (default 1.0 each)")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "rescale the result to unit magnitude")
	cmd.Flags().StringVar(&out, "out", "", "path to save the resulting vector")
	cmd.MarkFlagRequired("vector")
	return cmd
}

func newComposeSimilarityCmd(ro *RootOpts) *cobra.Command {
	var paths []string
	cmd := &cobra.Command{
		Use:   "similarity",
		Short: "Print the pairwise cosine similarity matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			vectors, err := loadVectors(paths)
			if err != nil {
				return err
			}
			sim, err := compose.CosineSimilarityMatrix(vectors)
			if err != nil {
				return err
			}
			if ro.JSONOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sim)
			}
			for _, row := range sim.Matrix {
				for _, c := range row {
					fmt.Fprintf(cmd.OutOrStdout(), "%7.4f ", c)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			for _, w := range sim.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&paths, "vector", nil, "path to a saved vector (repeatable)")
	cmd.MarkFlagRequired("vector")
	return cmd
}

func newComposeConflictsCmd(ro *RootOpts) *cobra.Command {
	var paths []string
	var threshold float64
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Report pairs of vectors with high |cosine| similarity",
		RunE: func(cmd *cobra.Command, args []string) error {
			vectors, err := loadVectors(paths)
			if err != nil {
				return err
			}
			conflicts, err := compose.DetectConflicts(vectors, threshold)
			if err != nil {
				return err
			}
			if ro.JSONOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(conflicts)
			}
			if len(conflicts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no conflicts detected")
				return nil
			}
			for _, c := range conflicts {
				fmt.Fprintf(cmd.OutOrStdout(), "%d <-> %d: %s (cosine %.4f)\n", c.I, c.J, c.Kind, c.Cosine)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&paths, "vector", nil, "path to a saved vector (repeatable)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "|cosine| cutoff (default: compose.DefaultConflictThreshold)")
	cmd.MarkFlagRequired("vector")
	return cmd
}

func newComposeOrthogonalizeCmd(ro *RootOpts) *cobra.Command {
	var paths []string
	var outDir string
	cmd := &cobra.Command{
		Use:   "orthogonalize",
		Short: "Gram-Schmidt orthogonalize vectors, preserving the first",
		RunE: func(cmd *cobra.Command, args []string) error {
			vectors, err := loadVectors(paths)
			if err != nil {
				return err
			}
			result, err := compose.Orthogonalize(vectors)
			if err != nil {
				return err
			}
			for i, v := range result.Vectors {
				status := ""
				if result.Zeroed[i] {
					status = " (zeroed)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d: magnitude %.4f%s\n", i, v.Magnitude(), status)
				if outDir != "" {
					dest := fmt.Sprintf("%s/orthogonal-%d", outDir, i)
					if err := v.Save(dest); err != nil {
						return fmt.Errorf("save %s: %w", dest, err)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&paths, "vector", nil, "path to a saved vector (repeatable, order matters)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory to save the orthogonalized vectors into")
	cmd.MarkFlagRequired("vector")
	return cmd
}
