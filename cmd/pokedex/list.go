package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Sternrassler/pokedex-client/internal/app"
	"github.com/Sternrassler/pokedex-client/pkg/pagination"
	"github.com/Sternrassler/pokedex-client/pkg/position"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type listOptions struct {
	pages    int
	retries  int
	session  string
	selectID int
}

func newListCmd(c *cli) *cobra.Command {
	opts := listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the Pokémon list page by page",
		Long: `List loads the first page and keeps loading the next one while the end of the
list is in view, up to --pages pages. The scroll position is saved under --session
and reported on the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, err := app.New(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer deps.Close()

			tracker, err := position.NewAdapter(ctx, deps.Store, opts.session)
			if err != nil {
				return err
			}

			pager, err := pagination.NewPager(ctx, deps.Repo, tracker, c.cfg.Pagination())
			if err != nil {
				return err
			}
			defer pager.Close()

			runErr := runList(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), pager, c.cfg.Pager.Threshold, opts)

			if err := tracker.Save(ctx); err != nil {
				log.Warn().Err(err).Str("session", opts.session).Msg("Failed to save position")
			}
			return runErr
		},
	}

	cmd.Flags().IntVarP(&opts.pages, "pages", "n", 3, "number of pages to load")
	cmd.Flags().IntVar(&opts.retries, "retries", 1, "retries after a failed load")
	cmd.Flags().StringVar(&opts.session, "session", "default", "key the scroll position is saved under")
	cmd.Flags().IntVar(&opts.selectID, "select", 0, "record this Pokémon id as selected")

	return cmd
}

// runList drives the pager until enough pages are loaded, the list ends, or a load
// fails more often than allowed.
func runList(ctx context.Context, out, errOut io.Writer, pager *pagination.Pager, threshold int, opts listOptions) error {
	if restored := pager.RestoredPosition(); !restored.IsZero() {
		fmt.Fprintf(errOut, "Last time you were at #%d", restored.FirstVisibleIndex+1)
		if id, ok := restored.Selected(); ok {
			fmt.Fprintf(errOut, " with #%d selected", id)
		}
		fmt.Fprintln(errOut)
	}

	states, unsubscribe := pager.Subscribe()
	defer unsubscribe()
	events := pager.Events()

	pager.LoadInitialPage()

	var (
		printed  int
		pages    int
		attempts int
		lastFail string
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			lastFail = ev.Message
			fmt.Fprintf(errOut, "Could not load more at offset %d: %s\n", ev.Offset, ev.Message)

		case s, ok := <-states:
			if !ok {
				return nil
			}

			switch st := s.(type) {
			case pagination.Loading:
				continue

			case pagination.Error:
				fmt.Fprintln(errOut, st.Message)
				if attempts >= opts.retries {
					return errors.New(st.Message)
				}
				attempts++
				pager.Retry()

			case pagination.Content:
				if st.IsLoadingMore {
					continue
				}

				if len(st.Items) > printed || pages == 0 {
					for i, item := range st.Items[printed:] {
						fmt.Fprintf(out, "%4d  #%-5d %s\n", printed+i+1, item.ID, item.DisplayName())
					}
					printed = len(st.Items)
					pages++
					attempts = 0

					if opts.selectID > 0 {
						pager.OnItemSelected(opts.selectID)
					}
				} else {
					// Nothing new: the load-more failed or every item was a duplicate.
					if !st.HasMore {
						return nil
					}
					if attempts >= opts.retries {
						if lastFail == "" {
							lastFail = "no new items"
						}
						return fmt.Errorf("loading more failed: %s", lastFail)
					}
					attempts++
				}

				lastVisible := len(st.Items) - 1
				pager.OnPositionChanged(max(lastVisible, 0), 0)

				if !st.HasMore {
					fmt.Fprintf(errOut, "End of list (%d Pokémon)\n", printed)
					return nil
				}
				if pages >= opts.pages {
					return nil
				}
				if pagination.ShouldLoadMore(lastVisible, len(st.Items), threshold) {
					pager.LoadNextPage()
				}
			}
		}
	}
}
