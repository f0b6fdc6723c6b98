package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kuitang/notes-api/internal/client"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
)

// maxPrefixScan bounds the notes scanned when resolving an id prefix.
const maxPrefixScan = 2000

// cli carries state shared by all subcommands.
type cli struct {
	serverFlag string
	configFile string
	verbose    bool

	cfg    *cliConfig
	client *client.Client
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "notes",
		Short:         "Read and edit notes on a notes API server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				obs.Init("debug")
			}
			cfg, err := loadCLIConfig(c.configFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.client = client.New(resolveServer(c.serverFlag, cfg))
			obs.Pkg("cli").Debug("using_server", "url", c.client.BaseURL())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.serverFlag, "server", "s", "", "API base URL (env "+serverEnv+", default "+defaultServer+")")
	root.PersistentFlags().StringVar(&c.configFile, "config", configPath(), "config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newListCmd(c),
		newShowCmd(c),
		newAddCmd(c),
		newEditCmd(c),
		newRmCmd(c),
	)
	return root
}

// resolveID accepts a full id or a unique prefix of one.
func (c *cli) resolveID(ctx context.Context, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if _, err := uuid.Parse(arg); err == nil {
		return arg, nil
	}
	if arg == "" {
		return "", fmt.Errorf("empty note id")
	}

	var matches []notes.Note
	for page := 1; (page-1)*notes.MaxLimit < maxPrefixScan; page++ {
		res, err := c.client.List(ctx, client.ListOptions{Page: page, Limit: notes.MaxLimit, Sort: "createdAt"})
		if err != nil {
			return "", err
		}
		for _, n := range res.Items {
			if strings.HasPrefix(n.ID, strings.ToLower(arg)) {
				matches = append(matches, n)
			}
		}
		if page >= res.Pages {
			break
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no note matches %q", arg)
	case 1:
		return matches[0].ID, nil
	default:
		return "", fmt.Errorf("%q matches %d notes; use more characters", arg, len(matches))
	}
}
