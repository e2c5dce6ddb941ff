// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumen-ai/steerkit/pkg/steervec"
)

func newInspectCmd(ro *RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "Print a saved steering vector's descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := steervec.Load(args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}

			if ro.JSONOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"layer_index":       v.LayerIndex(),
					"layer_name":        v.LayerName(),
					"model_fingerprint": v.ModelFingerprint(),
					"hidden_dim":        v.HiddenDim(),
					"dtype":             v.Dtype(),
					"magnitude":         v.Magnitude(),
					"metadata":          v.Metadata(),
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "layer_index:       %d\n", v.LayerIndex())
			fmt.Fprintf(cmd.OutOrStdout(), "layer_name:        %s\n", v.LayerName())
			fmt.Fprintf(cmd.OutOrStdout(), "model_fingerprint: %s\n", v.ModelFingerprint())
			fmt.Fprintf(cmd.OutOrStdout(), "hidden_dim:        %d\n", v.HiddenDim())
			fmt.Fprintf(cmd.OutOrStdout(), "dtype:             %s\n", v.Dtype())
			fmt.Fprintf(cmd.OutOrStdout(), "magnitude:         %.4f\n", v.Magnitude())
			if len(v.Metadata()) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "metadata:")
				for k, val := range v.Metadata() {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", k, val)
				}
			}
			return nil
		},
	}
	return cmd
}
