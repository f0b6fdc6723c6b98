package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/kuitang/notes-api/internal/client"
	"github.com/kuitang/notes-api/internal/ui"
)

func newEditCmd(c *cli) *cobra.Command {
	var (
		title   string
		appendB bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id-or-prefix>",
		Short: "Edit a note with autosave",
		Long: `Stream a new body from stdin, one line at a time. Edits are saved after a
quiet period and flushed when stdin closes. With --append, lines are added
to the existing body instead of replacing it.`,
		Args: cobra.ExactArgs(1),
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

			out := &lockedWriter{w: cmd.ErrOrStderr()}
			opts := []client.AutosaveOption{
				client.WithStatusFunc(func(ev client.SaveEvent) {
					switch ev.Status {
					case client.StatusSaved:
						fmt.Fprintln(out, ui.Success("Changes saved"))
					case client.StatusError:
						fmt.Fprintln(out, ui.FormatError(ev.Err))
					}
				}),
			}
			if c.cfg.AutosaveWait > 0 {
				opts = append(opts, client.WithDelay(c.cfg.AutosaveWait))
			}
			saver := c.client.NewAutosaver(id, opts...)

			if cmd.Flags().Changed("title") {
				if err := saver.SetTitle(title); err != nil {
					return err
				}
			}

			var body strings.Builder
			if appendB && note.Body != "" {
				body.WriteString(note.Body)
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if body.Len() > 0 {
					body.WriteByte('\n')
				}
				body.WriteString(scanner.Text())
				if err := saver.SetBody(body.String()); err != nil {
					return err
				}
			}
			if err := scanner.Err(); err != nil {
				_ = saver.Close(context.WithoutCancel(ctx))
				return fmt.Errorf("read stdin: %w", err)
			}

			if err := saver.Close(ctx); err != nil {
				return fmt.Errorf("failed to save note: %w", err)
			}
			if saver.Pending() {
				return fmt.Errorf("title must not be blank; note %s left unchanged", ui.ShortID(id))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().BoolVarP(&appendB, "append", "a", false, "append stdin to the existing body")
	return cmd
}

// lockedWriter serializes status lines from concurrent saves.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
