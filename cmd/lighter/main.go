// Package main provides the lighter CLI entrypoint.
//
// Usage:
//
//	lighter <command> [options]
//
// Exit codes for `deploy`:
//   - 0: deployment succeeded
//   - 1: pipeline or remote failure
//   - 2: authentication failure
//   - 3: invalid input
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/harborworks/lighter/cli/cmd"
	"github.com/harborworks/lighter/types"
)

// commit and date are set via ldflags at build time.
var (
	commit = "unknown"
	date   = "unknown"
)

func main() {
	app := &cli.App{
		Name:           "lighter",
		Usage:          "Content-addressed static site deployment",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.DeployCommand(),
			cmd.PlanCommand(),
			cmd.HistoryCommand(),
			cmd.VersionCommand(commit, date),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled cli.ExitCoder errors. This
		// branch catches unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit() so deploy failures
// map to the documented codes.
func exitErrHandler(_ *cli.Context, err error) {
	code, msg, exit := exitStatus(err)
	if !exit {
		return
	}
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// exitStatus maps a CLI error to the process exit code and the stderr
// message. exit is false only for a nil error.
func exitStatus(err error) (code int, msg string, exit bool) {
	if err == nil {
		return 0, "", false
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code = exitCoder.ExitCode()
		msg = exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; print nothing
		// for those.
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return code, msg, true
	}

	return 1, fmt.Sprintf("Error: %v", err), true
}
