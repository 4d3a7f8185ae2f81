// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/xdg"
)

// NewRootCmd creates the root command for the gatehouse CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatehouse",
		Short: "Gatehouse - account authentication and credential recovery",
		Long: `Gatehouse is the authentication service behind the web application:
account registration, login with rate limiting, session management,
and single-use password reset tokens delivered by email.`,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// resolveConfigFile falls back to the XDG config location when no
// --config flag was given. An absent default file means "use defaults".
func resolveConfigFile(configFile string) string {
	if configFile != "" {
		return configFile
	}
	candidate := xdg.DefaultConfigFile()
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
