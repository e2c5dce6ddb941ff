// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// RootOpts carries the flags every subcommand reads, set once on the
// root command and threaded through newXxxCmd constructors.
type RootOpts struct {
	JSONOut  bool
	Quiet    bool
	Verbose  bool
	Config   string
	LogFile  string
	LogLevel string

	// Token is accepted by the --token flag but not read by any steerkit
	// command (the library never talks to a model hub).
	Token string
}

// Execute builds the root command and runs it with os.Args. version is
// the build-time version string reported by "steerkit version".
func Execute(version string) error {
	ctx := context.Background()
	ro := &RootOpts{}

	root := &cobra.Command{
		Use:   "steerkit",
		Short: "Derive, compose, and apply activation-steering vectors",
		Long: `steerkit discovers steering vectors from contrastive text, composes
them, and applies them to a loaded causal language model's residual
stream during generation.

steerkit does not load models or tokenizers itself: every command that
touches a model operates against the reference in-memory model (for
demos and tests) unless a host integration supplies a real
pkg/llmhost.CausalLM.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&ro.JSONOut, "json", false, "emit machine-readable JSON output")
	root.PersistentFlags().BoolVarP(&ro.Quiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVarP(&ro.Verbose, "verbose", "v", false, "verbose logging (accepted; no command writes logs)")
	root.PersistentFlags().StringVar(&ro.Config, "config", "", "path to a steerkit config file (accepted but not read; commands use steerkit.json, .yaml or .yml under ~/.config)")
	root.PersistentFlags().StringVar(&ro.LogFile, "log-file", "", "log file path (accepted; no command writes logs)")
	root.PersistentFlags().StringVar(&ro.LogLevel, "log-level", "info", "log level: debug, info, warn, error (accepted; no command writes logs)")
	root.PersistentFlags().StringVar(&ro.Token, "token", "", "access token (accepted; not read by any command)")

	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newDiscoverCmd(ctx, ro))
	root.AddCommand(newComposeCmd(ro))
	root.AddCommand(newApplyCmd(ctx, ro))
	root.AddCommand(newGenerateCmd(ctx, ro))
	root.AddCommand(newInspectCmd(ro))
	root.AddCommand(newServeCmd(ro))
	root.AddCommand(newConfigCmd(ro))

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

// splitComma splits a comma-separated flag value into trimmed,
// non-empty parts. An all-whitespace or empty input yields nil.
func splitComma(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
