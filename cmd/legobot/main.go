// Command legobot runs the robot server on an EV3 brick and drives it from
// a remote machine.
package main

import (
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/teslashibe/go-legobot/internal/config"
	"github.com/teslashibe/go-legobot/internal/log"
)

type Options struct {
	LogLevel string `long:"log-level" env:"LOG_LEVEL" description:"Log level (debug, info, warn, error)"`

	Serve    ServeCommand    `command:"serve" description:"Run the robot server on the brick"`
	Devices  DevicesCommand  `command:"devices" description:"List the robot's installed modules"`
	Call     CallCommand     `command:"call" description:"Invoke one robot operation"`
	Tools    ToolsCommand    `command:"tools" description:"Print the tool catalogue for this robot"`
	Discover DiscoverCommand `command:"discover" description:"Find robots on the local network"`
	Teleop   TeleopCommand   `command:"teleop" alias:"drive" description:"Drive the robot from the keyboard"`
}

var (
	opts   Options
	parser = flags.NewParser(&opts, flags.Default)
	cfg    *config.Config
)

func main() {
	parser.LongDescription = "legobot - remote control and safety layer for a LEGO EV3 robot"

	var err error
	if cfg, err = config.Load(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		level := cfg.LogLevel
		if opts.LogLevel != "" {
			level = opts.LogLevel
		}
		log.Init(level)
		return cmd.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
