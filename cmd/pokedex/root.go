package main

import (
	"github.com/Sternrassler/pokedex-client/internal/config"
	"github.com/Sternrassler/pokedex-client/pkg/logging"
	"github.com/spf13/cobra"
)

// cli holds state shared by the subcommands once the root pre-run has loaded it.
type cli struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:           "pokedex",
		Short:         "Browse the Pokémon list from PokeAPI",
		Long:          `Pokedex pages through the PokeAPI Pokémon list the way the list screen does, remembering where you stopped.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if c.verbose {
				cfg.Log.Level = "debug"
			}

			lc := cfg.Logging("pokedex")
			lc.Output = cmd.ErrOrStderr()
			logging.Setup(lc)

			c.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newListCmd(c))
	cmd.AddCommand(newDumpCmd(c))

	return cmd
}
