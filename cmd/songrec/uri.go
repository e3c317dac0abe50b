package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/songrec/internal/config"
)

func newURICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uri",
		Short: "Connection string helpers",
	}

	normalize := &cobra.Command{
		Use:   "normalize <uri>",
		Short: "Escape the user and password of a connection string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.NormalizeURI(args[0]))
			return nil
		},
	}

	check := &cobra.Command{
		Use:   "check <uri>",
		Short: "Validate a connection string after normalization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := config.NormalizeURI(args[0])
			if err := config.ValidateURI(uri); err != nil {
				return fmt.Errorf("invalid uri: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.AddCommand(normalize, check)
	return cmd
}
