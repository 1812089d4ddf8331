//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/mixprep"
)

var errAnalyzeArgs = errors.New("expected at least one argument: file path(s)")

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Analyze audio files for tempo, key and loudness",
		ArgsUsage: "<file> [<file>...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of files analyzed concurrently",
				Value:   mixprep.DefaultMaxConcurrent,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: console, json, markdown",
				Value:   "console",
			},
			&cli.BoolFlag{
				Name:  "no-fallback",
				Usage: "Only decode WAV natively, skip the ffmpeg fallback",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() < 1 {
				return fmt.Errorf("%w: got %d", errAnalyzeArgs, cmd.NArg())
			}

			return runQueue(ctx, cmd.Args().Slice(), queueOptions{
				workers:    int(cmd.Int("workers")),
				formatName: cmd.String("format"),
				noFallback: cmd.Bool("no-fallback"),
			})
		},
	}
}

type queueOptions struct {
	workers    int
	formatName string
	noFallback bool
}

// uniquePaths drops repeated paths, keeping first-seen order. The path
// doubles as the request ID, and the scheduler expects one task per ID.
func uniquePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	unique := make([]string, 0, len(paths))

	for _, path := range paths {
		if seen[path] {
			continue
		}

		seen[path] = true
		unique = append(unique, path)
	}

	return unique
}

// runQueue pushes every path through the scheduler and prints terminal
// events as they arrive. Completion order is whatever the per-file
// decode+analyze duration dictates.
func runQueue(ctx context.Context, paths []string, opts queueOptions) error {
	paths = uniquePaths(paths)

	pipeline := mixprep.NewPipeline()
	if opts.noFallback {
		pipeline.Fallback = nil
	}

	scheduler := mixprep.NewScheduler(ctx, mixprep.SchedulerOptions{
		MaxConcurrent: opts.workers,
		Runner:        pipeline.Run,
	})
	listener := scheduler.Subscribe()

	defer scheduler.Unsubscribe(listener)

	// Pause so the whole batch is queued before the first slot fills;
	// Resume then dispatches in priority order.
	scheduler.Pause()

	for _, path := range paths {
		scheduler.Enqueue(path, path, mixprep.PriorityNormal)
	}

	scheduler.Resume()

	failed := 0

	for range paths {
		select {
		case result := <-listener.Results:
			if err := outputResult(&result, opts.formatName); err != nil {
				return err
			}
		case taskErr := <-listener.Errors:
			failed++

			fmt.Printf("%s: %s\n", taskErr.RequestID, taskErr.Message)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}

	return nil
}
