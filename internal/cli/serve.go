// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumen-ai/steerkit/internal/server"
)

func newServeCmd(ro *RootOpts) *cobra.Command {
	var (
		addr       string
		vectorsDir string
		hiddenDim  int
		numLayers  int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start an HTTP server exposing discovery, composition, and steering",
		Long: `Start an HTTP server that provides:
  - Discovery of steering vectors from contrastive text
  - Listing, inspection, and conflict-checking of saved vectors
  - Syncing a vectors directory against another location
  - Applying steering and generating against the reference model
  - Prometheus metrics at /metrics

The server steers its own in-memory reference model; it does not load
or connect to an external model.

Examples:
  steerkit serve
  steerkit serve --addr 0.0.0.0:8765 --vectors-dir /data/vectors`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfigFile()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = addr
			}
			if cmd.Flags().Changed("vectors-dir") {
				cfg.VectorsDir = vectorsDir
			}
			if cmd.Flags().Changed("hidden-dim") {
				cfg.ReferenceHiddenDim = hiddenDim
			}
			if cmd.Flags().Changed("num-layers") {
				cfg.ReferenceNumLayers = numLayers
			}

			srv, err := server.New(cfg)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			fmt.Fprintf(cmd.OutOrStdout(), "steerkit server listening on %s (vectors: %s)\n", cfg.ListenAddr, cfg.VectorsDir)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8765", "address to listen on")
	cmd.Flags().StringVar(&vectorsDir, "vectors-dir", "", "directory of saved steering vectors")
	cmd.Flags().IntVar(&hiddenDim, "hidden-dim", 32, "reference model hidden dimension")
	cmd.Flags().IntVar(&numLayers, "num-layers", 4, "reference model layer count")

	return cmd
}
