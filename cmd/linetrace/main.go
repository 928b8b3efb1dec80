package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Verbose bool `short:"v" long:"verbose" description:"Enable debug logging"`

	Setup SetupCommand `command:"setup" description:"Find the I/O bridge and save its serial port"`
	Run   RunCommand   `command:"run" description:"Follow the line using the I/O bridge"`
	Sim   SimCommand   `command:"sim" description:"Follow a simulated track"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

// logger is built once options are parsed; commands use it from Execute.
var logger = zap.NewNop()

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func main() {
	parser.LongDescription = "linetrace - three-sensor line follower for differential-drive robots"
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		l, err := newLogger(opts.Verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		defer logger.Sync()

		if command == nil {
			return nil
		}
		return command.Execute(args)
	}

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
