package main

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/pokedex-client/internal/app"
	"github.com/Sternrassler/pokedex-client/pkg/pagination"
	"github.com/spf13/cobra"
)

func newDumpCmd(c *cli) *cobra.Command {
	cfg := pagination.DefaultBatchConfig()

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Fetch the whole list and print it as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, err := app.New(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer deps.Close()

			items, fetchErr := pagination.NewBatchFetcher(deps.Repo, cfg).FetchAll(ctx)

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, item := range items {
				if err := enc.Encode(item); err != nil {
					return fmt.Errorf("write item %d: %w", item.ID, err)
				}
			}
			return fetchErr
		},
	}

	cmd.Flags().IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "items per request")
	cmd.Flags().IntVar(&cfg.MaxConcurrency, "concurrency", cfg.MaxConcurrency, "parallel requests")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout per page")

	return cmd
}
