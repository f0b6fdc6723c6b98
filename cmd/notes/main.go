// Command notes is a terminal client for the notes API.
package main

import (
	"fmt"
	"os"

	"github.com/kuitang/notes-api/internal/ui"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.FormatError(err))
		os.Exit(1)
	}
}
