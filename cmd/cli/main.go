package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/shplanner/internal/app"
	"github.com/vk/shplanner/internal/cli"
	"github.com/vk/shplanner/internal/planner"
)

// main is the entrypoint for the shplanner application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := cli.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	a := app.NewApp(outW, appConfig)
	if appConfig.RegisterOutputs != "" {
		_, err = a.RegisterOutputs(context.Background())
		return err
	}
	_, err = a.Run(context.Background())
	return err
}

// exitCode maps an error to the process exit status: 2 for usage and
// workflow errors, 1 for everything else.
func exitCode(err error) int {
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, planner.ErrInput) {
		return 2
	}
	return 1
}
