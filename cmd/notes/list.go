package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuitang/notes-api/internal/client"
	"github.com/kuitang/notes-api/internal/ui"
)

func newListCmd(c *cli) *cobra.Command {
	var opts client.ListOptions
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List notes",
		Long:    `List one page of notes. Sort by title, createdAt or updatedAt; prefix with - for descending.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Limit == 0 {
				opts.Limit = c.cfg.PageSize
			}
			res, err := c.client.List(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("failed to list notes: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(res.Items) == 0 {
				fmt.Fprintln(out, "No notes found.")
				return nil
			}
			for _, n := range res.Items {
				fmt.Fprint(out, ui.FormatNoteListItem(n))
			}
			fmt.Fprint(out, ui.FormatPageFooter(res))
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Page, "page", "p", 1, "page number")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "notes per page (server default 50, max 200)")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort order, e.g. title or -updatedAt")
	return cmd
}
