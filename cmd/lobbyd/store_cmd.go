// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/lobbyd/internal/persistence/sqlite"
)

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Maintain the match history store",
	}
	cmd.AddCommand(newStoreVerifyCmd())
	return cmd
}

func newStoreVerifyCmd() *cobra.Command {
	var path, mode string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check integrity of a SQLite history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				return fmt.Errorf("--path is required")
			}
			mode = strings.ToLower(strings.TrimSpace(mode))
			if mode != "quick" && mode != "full" {
				return fmt.Errorf("invalid mode %q (want quick|full)", mode)
			}
			issues, err := sqlite.VerifyIntegrity(path, mode)
			if err != nil {
				return fmt.Errorf("verification interrupted: %w", err)
			}
			if issues != nil {
				for _, issue := range issues {
					fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", issue)
				}
				return fmt.Errorf("corruption detected in %s", path)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: integrity ok (%s)\n", path, mode)
			return err
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "path to the SQLite database file")
	cmd.Flags().StringVar(&mode, "mode", "quick", "verification mode: quick or full")
	return cmd
}
