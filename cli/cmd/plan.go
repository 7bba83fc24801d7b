package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/harborworks/lighter/cli/render"
	"github.com/harborworks/lighter/pipeline"
)

// PlanCommand returns the plan command: a dry run that reports what a
// deploy would upload without touching the store's contents.
func PlanCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Show what a deploy would upload, without uploading",
		ArgsUsage: "[dir]",
		Flags:     pipelineFlags(),
		Action:    planAction,
	}
}

func planAction(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	setup, err := newRunSetup(ctx, c, false)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	runner, err := pipeline.NewRunner(pipeline.Config{
		Project:     setup.cfg.Project,
		Root:        setup.cfg.Root,
		Store:       setup.store,
		RunID:       setup.runID,
		Ignore:      setup.cfg.Ignore,
		Concurrency: setup.cfg.Concurrency,
		MaxFileSize: setup.cfg.MaxFileSize,
		Logger:      setup.logger,
		Collector:   setup.collector,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	plan, err := runner.Plan(ctx)
	if err != nil {
		return cli.Exit(err.Error(), exitCodeFor(err))
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(plan)
}
