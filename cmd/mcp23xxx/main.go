// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// mcp23xxx drives an MCP23S17 or MCP23S18 SPI GPIO expander from the command
// line.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	// Flags.
	flagSPI     = "spi"
	flagCS      = "cs"
	flagReset   = "reset"
	flagInt     = "int"
	flagSpeed   = "speed"
	flagVariant = "variant"
	flagAddr    = "addr"
	flagHAEN    = "haen"
	flagInit    = "init"
	flagDebug   = "debug"
	flagNoColor = "no-color"
	flagPullUp  = "pullup"
	flagMask    = "mask"
	flagDefVal  = "defval"
)

func main() {
	if err := newApp(&runner{}).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mcp23xxx: %s\n", err)
		os.Exit(1)
	}
}

func newApp(r *runner) *cli.App {
	return &cli.App{
		Name:  "mcp23xxx",
		Usage: "drive an MCP23S17/MCP23S18 SPI GPIO expander",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagSPI,
				Usage: "SPI port `NAME`, empty for the first one",
			},
			&cli.StringFlag{
				Name:  flagCS,
				Usage: "host GPIO `PIN` driving chip select, empty when the SPI port drives it",
			},
			&cli.StringFlag{
				Name:  flagReset,
				Usage: "host GPIO `PIN` wired to RESET",
			},
			&cli.StringFlag{
				Name:  flagInt,
				Usage: "host GPIO `PIN` wired to INTA or INTB",
			},
			&cli.StringFlag{
				Name:  flagSpeed,
				Value: "10MHz",
				Usage: "SPI clock",
			},
			&cli.StringFlag{
				Name:  flagVariant,
				Value: "MCP23S17",
				Usage: "MCP23S17 or MCP23S18",
			},
			&cli.UintFlag{
				Name:  flagAddr,
				Usage: "hardware address strapped on A2..A0, used with --haen",
			},
			&cli.BoolFlag{
				Name:  flagHAEN,
				Usage: "enable hardware addressing",
			},
			&cli.BoolFlag{
				Name:  flagInit,
				Usage: "reset and configure the chip before the command",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			if c.Bool(flagDebug) {
				r.log, err = zap.NewDevelopment()
			} else {
				r.log, err = zap.NewProduction()
			}
			return err
		},
		After: func(c *cli.Context) error {
			if r.log != nil {
				_ = r.log.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "reset the chip: every pin input, interrupts off",
				Action: r.initChip,
			},
			{
				Name:  "dump",
				Usage: "print every register",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: flagNoColor, Usage: "plain text output"},
				},
				Action: r.dump,
			},
			{
				Name:      "get",
				Usage:     "read a pin or a port",
				ArgsUsage: "[A|B|A0..B7]",
				Action:    r.get,
			},
			{
				Name:      "set",
				Usage:     "drive an output pin or a port",
				ArgsUsage: "A0..B7 high|low|toggle, or A|B VALUE",
				Action:    r.set,
			},
			{
				Name:      "mode",
				Usage:     "configure a pin or a port direction",
				ArgsUsage: "A0..B7 out|in|in-pullup, or A|B OUTPUTS",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: flagPullUp, Usage: "enable pull-ups on the port inputs"},
				},
				Action: r.mode,
			},
			{
				Name:      "setup",
				Usage:     "apply a YAML board description",
				ArgsUsage: "FILE",
				Action:    r.setup,
			},
			{
				Name:      "watch",
				Usage:     "print the interrupts of a port until interrupted",
				ArgsUsage: "A|B",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: flagMask, Value: 0xFF, Usage: "pins to watch"},
					&cli.StringFlag{Name: flagDefVal, Usage: "compare against `VALUE` instead of the previous level"},
				},
				Action: r.watch,
			},
		},
	}
}
