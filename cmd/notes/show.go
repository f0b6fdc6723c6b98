package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuitang/notes-api/internal/ui"
)

func newShowCmd(c *cli) *cobra.Command {
	var (
		numbered bool
		head     int
	)
	cmd := &cobra.Command{
		Use:   "show <id-or-prefix>",
		Short: "Show a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.resolveID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			note, err := c.client.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get note: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, ui.FormatNoteHeader(*note))
			fmt.Fprint(out, ui.FormatNoteBody(note.Body, numbered, head))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&numbered, "number", "N", false, "number body lines")
	cmd.Flags().IntVar(&head, "head", 0, "show only the first N lines")
	return cmd
}
