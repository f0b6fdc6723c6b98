package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/notes-api/internal/ui"
)

func newRmCmd(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "rm <id-or-prefix>",
		Short: "Remove a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := c.resolveID(ctx, args[0])
			if err != nil {
				return err
			}
			note, err := c.client.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get note: %w", err)
			}

			out := cmd.OutOrStdout()
			if !force {
				fmt.Fprintf(out, "Delete note %q (%s)? [y/N] ", note.Title, ui.ShortID(note.ID))
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.TrimSpace(strings.ToLower(response))
				if response != "y" && response != "yes" {
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
			}

			if err := c.client.Delete(ctx, id); err != nil {
				return fmt.Errorf("failed to delete note: %w", err)
			}
			fmt.Fprintln(out, ui.Success(fmt.Sprintf("Deleted note %s", ui.ShortID(id))))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}
