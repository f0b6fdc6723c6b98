package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/ui"
)

func newAddCmd(c *cli) *cobra.Command {
	var (
		body      string
		fromStdin bool
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a note",
		Long:  `Create a note. The body comes from --body, or from stdin with --stdin.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			in := notes.CreateInput{Title: &title}
			if fromStdin {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				body = string(raw)
			}
			if body != "" {
				in.Body = &body
			}

			note, err := c.client.Create(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("failed to create note: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Created note %s %q", ui.ShortID(note.ID), note.Title)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&body, "body", "b", "", "note body")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the body from stdin")
	return cmd
}
