package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCommand(env *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the song vector index",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create the song index if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, *env)
			if err != nil {
				return err
			}
			defer rt.Close()

			songs := rt.songRepo()
			created, err := songs.EnsureIndex(ctx)
			if err != nil {
				return fmt.Errorf("create index %s: %w", songs.IndexName(), err)
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created index %s (dim=%d)\n",
					songs.IndexName(), rt.cfg.Embedding.Dimensions)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index %s already exists\n", songs.IndexName())
			return nil
		},
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check that the song index exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, *env)
			if err != nil {
				return err
			}
			defer rt.Close()

			songs := rt.songRepo()
			if err := songs.VerifyIndex(ctx); err != nil {
				return fmt.Errorf("verify index %s: %w", songs.IndexName(), err)
			}
			count, err := songs.CountAll(ctx)
			if err != nil {
				return fmt.Errorf("count songs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index %s ok, %d songs\n", songs.IndexName(), count)
			return nil
		},
	}

	cmd.AddCommand(create, verify)
	return cmd
}
