//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/mixprep"
)

var (
	errScanArgs     = errors.New("expected exactly one argument: folder path")
	errNotDirectory = errors.New("not a directory")
	errNoAudioFiles = errors.New("no audio files found")
)

// audioExtensions are the formats worth enqueuing from a library scan.
// Everything non-WAV goes through the ffmpeg fallback.
//
//nolint:gochecknoglobals // effectively const
var audioExtensions = []string{".wav", ".wave", ".flac", ".mp3", ".m4a", ".aiff", ".aif", ".ogg", ".opus"}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Scan a music folder and analyze every audio file in it",
		ArgsUsage: "<folder>",
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
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errScanArgs, cmd.NArg())
			}

			folder := cmd.Args().First()

			info, err := os.Stat(folder)
			if err != nil || !info.IsDir() {
				return fmt.Errorf("%q: %w", folder, errNotDirectory)
			}

			files, err := collectAudioFiles(folder)
			if err != nil {
				return fmt.Errorf("scanning folder: %w", err)
			}

			if len(files) == 0 {
				return fmt.Errorf("%q: %w", folder, errNoAudioFiles)
			}

			workers := int(cmd.Int("workers"))

			fmt.Fprintf(os.Stderr, "Found %d files to analyze (%d workers)\n", len(files), workers)

			startTime := time.Now()

			if err := runQueue(ctx, files, queueOptions{
				workers:    workers,
				formatName: cmd.String("format"),
				noFallback: cmd.Bool("no-fallback"),
			}); err != nil {
				return err
			}

			elapsed := time.Since(startTime)
			fmt.Fprintf(os.Stderr, "\nDone: %d files in %s\n", len(files), elapsed.Truncate(time.Millisecond))

			return nil
		},
	}
}

func collectAudioFiles(folder string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(folder, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		if slices.Contains(audioExtensions, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)

	return files, nil
}
