// Package cli contains the rtdebridge command line application.
package cli

import (
	"io"
	"time"

	"github.com/urfave/cli/v2"
)

const (
	configFlag   = "config"
	debugFlag    = "debug"
	fakeFlag     = "fake"
	logFileFlag  = "log-file"
	durationFlag = "duration"
)

var app = &cli.App{
	Name:            "rtdebridge",
	Usage:           "drive a Universal Robots arm from a fixed-rate control loop",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     configFlag,
			Aliases:  []string{"c"},
			Usage:    "load configuration from `FILE`",
			Required: true,
		},
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.BoolFlag{
			Name:  fakeFlag,
			Usage: "run against a simulated arm instead of the configured host",
		},
		&cli.StringFlag{
			Name:  logFileFlag,
			Usage: "also write logs to `FILE`, overriding the configured file",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "check",
			Usage:  "validate the configuration and print it",
			Action: CheckAction,
		},
		{
			Name:   "status",
			Usage:  "connect and print the tool pose and safety state",
			Action: StatusAction,
		},
		{
			Name:  "hold",
			Usage: "stream the current tool pose every cycle, holding the arm in place",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  durationFlag,
					Usage: "how long to hold",
					Value: 5 * time.Second,
				},
			},
			Action: HoldAction,
		},
		{
			Name:      "move",
			Usage:     "move the tool to a pose and wait for it to arrive",
			ArgsUsage: "<x> <y> <z> [<qw> <qx> <qy> <qz>]",
			Action:    MoveAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
