package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/app"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/cli"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/hcl"
)

// main is the entrypoint for the labrunner application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
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

	// Module registration panics on critical config errors; recover here to
	// provide a clean exit message to the user.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(outW, "A critical startup error occurred: %v\n", r)
			os.Exit(1)
		}
	}()

	loader := hcl.NewLoader()
	application := app.NewApp(outW, appConfig, loader)

	return application.Run(context.Background())
}
