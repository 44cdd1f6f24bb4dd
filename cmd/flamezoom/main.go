package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tobert/flamezoom/internal/cli"
	cliframework "github.com/urfave/cli/v3"
)

const version = "0.1.0-dev"

func main() {
	app := &cliframework.Command{
		Name:    "flamezoom",
		Usage:   "Zoomable flame graphs for OpenTelemetry traces",
		Version: version,
		Flags:   cli.RootFlags(),
		Commands: []*cliframework.Command{
			cli.ServeCommand(),
			cli.ViewCommand(),
			cli.SampleCommand(),
			cli.DoctorCommand(version),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ error: %v\n", err)
		os.Exit(1)
	}
}
