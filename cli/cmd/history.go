package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/harborworks/lighter/cli/config"
	"github.com/harborworks/lighter/cli/render"
	"github.com/harborworks/lighter/cli/tui"
	"github.com/harborworks/lighter/journal"
)

// stdoutIsTTY reports whether stdout is attached to a terminal.
func stdoutIsTTY() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// HistoryCommand returns the history command: past deploys from the
// local journal.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past deploys recorded in the local journal",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "project",
				Aliases: []string{"p"},
				Usage:   "Keep only deploys for this project",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Most recent N deploys (0 = all)",
			},
			ConfigFlag,
		}, ReadOnlyFlags()...),
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	path, err := historyPath(c)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	jnl, err := journal.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open deploy history: %v", err), exitFailure)
	}

	records, err := jnl.List(journal.ListOptions{
		Project: c.String("project"),
		Limit:   c.Int("limit"),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("read deploy history: %v", err), exitFailure)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		if !stdoutIsTTY() {
			fmt.Println(tui.RenderHistoryStatic(records))
			return nil
		}
		return r.RenderTUI("history", records)
	}
	return r.Render(records)
}

// historyPath resolves the journal location from the config file, or
// the default when no file names one.
func historyPath(c *cli.Context) (string, error) {
	path := c.String("config")
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigFile); err == nil {
			path = config.DefaultConfigFile
		}
	}
	if path == "" {
		return config.DefaultHistoryPath(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return "", err
	}
	if cfg.History.Path != "" {
		return cfg.History.Path, nil
	}
	return config.DefaultHistoryPath(), nil
}
