// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/muxd/root.go
// Summary: Cobra command tree for the muxd server binary.

package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "muxd",
	Short:         "Session-multiplexing terminal server",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.AddCommand(serveCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the muxd version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.Println(version)
		return nil
	},
}
