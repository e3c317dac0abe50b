package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/songrec/internal/config"
	"github.com/kailas-cloud/songrec/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var env string

	root := &cobra.Command{
		Use:           "songrec",
		Short:         "Song search proxy and similarity recommendations",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&env, "env", config.GetEnv(), "Config environment (local, docker, prod)")

	root.AddCommand(
		newServeCommand(&env),
		newSeedCommand(&env),
		newIndexCommand(&env),
		newURICommand(),
	)
	return root
}
