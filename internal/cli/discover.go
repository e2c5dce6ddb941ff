// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lumen-ai/steerkit/internal/refmodel"
	"github.com/lumen-ai/steerkit/internal/tui"
	"github.com/lumen-ai/steerkit/pkg/discover"
)

func newDiscoverCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Derive a steering vector from contrastive text",
	}
	cmd.AddCommand(newDiscoverMethodCmd(ctx, ro, "mean-diff", "mean_difference"))
	cmd.AddCommand(newDiscoverMethodCmd(ctx, ro, "caa", "caa"))
	cmd.AddCommand(newDiscoverMethodCmd(ctx, ro, "probe", "linear_probe"))
	return cmd
}

func newDiscoverMethodCmd(ctx context.Context, ro *RootOpts, use, method string) *cobra.Command {
	var positiveFile, negativeFile, out string
	var layer, hiddenDim, numLayers, batchSize, maxLength int
	var interactive bool

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Discover a vector with the %s method", method),
		RunE: func(cmd *cobra.Command, args []string) error {
			positive, err := readLines(positiveFile)
			if err != nil {
				return err
			}
			negative, err := readLines(negativeFile)
			if err != nil {
				return err
			}

			model := refmodel.New(refmodel.Options{HiddenDim: hiddenDim, NumLayers: numLayers})

			if interactive {
				names := make([]string, len(model.Blocks()))
				for i, b := range model.Blocks() {
					names[i] = b.Name()
				}
				picked, err := tui.RunLayerPicker(model.Architecture(), names, layer)
				if err != nil {
					return err
				}
				if picked.Cancelled {
					fmt.Fprintln(cmd.ErrOrStderr(), "cancelled")
					return nil
				}
				layer = picked.Selected
			}

			opts := discover.CaptureOptions{
				BatchSize: batchSize,
				MaxLength: maxLength,
				Progress: func(done, total int) {
					if !ro.Quiet {
						fmt.Fprintf(cmd.ErrOrStderr(), "\rcapturing activations: %d/%d", done, total)
					}
				},
			}

			var result discover.DiscoveryResult
			switch method {
			case "mean_difference":
				result, err = discover.MeanDifference(ctx, model, positive, negative, layer, opts)
			case "caa":
				result, err = discover.CAA(ctx, model, positive, negative, layer, opts)
			case "linear_probe":
				result, err = discover.LinearProbe(ctx, model, positive, negative, layer, opts)
			}
			if !ro.Quiet {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}

			if out != "" {
				if err := result.Vector.Save(out); err != nil {
					return fmt.Errorf("save vector: %w", err)
				}
			}

			if ro.JSONOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"metrics": result.Metrics,
					"notes":   result.Notes,
					"saved":   out,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "discovered layer %d vector (magnitude %.4f)\n", layer, result.Vector.Magnitude())
			for k, v := range result.Metrics {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", k, v)
			}
			for _, n := range result.Notes {
				fmt.Fprintf(cmd.OutOrStdout(), "note: %s\n", n)
			}
			if out != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "saved to %s\n", out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&positiveFile, "positive", "", "file with one positive example per line (required)")
	cmd.Flags().StringVar(&negativeFile, "negative", "", "file with one negative example per line (required)")
	cmd.Flags().IntVar(&layer, "layer", 0, "block index to capture activations from")
	cmd.Flags().StringVar(&out, "out", "", "path to save the resulting vector (<path>.json + <path>.pt)")
	cmd.Flags().IntVar(&hiddenDim, "hidden-dim", 32, "reference model hidden dimension")
	cmd.Flags().IntVar(&numLayers, "num-layers", 4, "reference model layer count")
	cmd.Flags().IntVar(&batchSize, "batch-size", 8, "activation-capture batch size")
	cmd.Flags().IntVar(&maxLength, "max-length", 512, "maximum token length per capture")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "pick the target layer from a terminal UI instead of --layer")
	cmd.MarkFlagRequired("positive")
	cmd.MarkFlagRequired("negative")
	return cmd
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Clean(path), err)
	}
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			line := trimCR(string(data[start:i]))
			if line != "" {
				lines = append(lines, line)
			}
			start = i + 1
		}
	}
	if start < len(data) {
		line := trimCR(string(data[start:]))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}
