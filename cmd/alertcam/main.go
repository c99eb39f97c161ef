package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	application := &cli.App{
		Name:  "alertcam",
		Usage: "Detect target objects on a camera feed and send one alert per episode",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Value:   ".env",
				Usage:   "Optional env file loaded before the environment",
				EnvVars: []string{"ENV_FILE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Log level (debug, info, warning, error)",
			},
		},
		Commands:       getCommands(),
		DefaultCommand: "run",
	}

	if err := application.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "alertcam: %v\n", err)
		os.Exit(1)
	}
}
