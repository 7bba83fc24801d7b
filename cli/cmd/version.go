package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/harborworks/lighter/cli/render"
	"github.com/harborworks/lighter/types"
)

// VersionResponse is the payload for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

// VersionCommand returns the version command. Commit and build date are
// injected at build time via ldflags.
func VersionCommand(commit, date string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			if c.Bool("tui") {
				return fmt.Errorf("--tui is not supported for version")
			}

			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			return r.Render(VersionResponse{
				Version: types.Version,
				Commit:  commit,
				Date:    date,
			})
		},
	}
}
