// Package cmd provides CLI commands for the lighter binary.
package cmd

import "github.com/urfave/cli/v2"

// Exit codes for the deploy pipeline.
const (
	exitSuccess        = 0
	exitFailure        = 1
	exitAuthentication = 2
	exitInvalidInput   = 3
)

// Shared flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for the history command.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (history only)",
	}

	// ConfigFlag points at a lighter.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to lighter.yaml (default: ./lighter.yaml when present)",
	}
)

// ReadOnlyFlags returns the shared flags for read-only commands.
// Includes --tui so that unsupported commands can provide explicit error
// messages instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}
