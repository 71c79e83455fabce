// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/GermanBionicSystems/gpioexp/mcp23xxx"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// runner holds the state shared by the commands.
type runner struct {
	log *zap.Logger
	// open is replaced in tests.
	open func(c *cli.Context) (*mcp23xxx.Dev, func() error, error)
}

// device opens the chip described by the global flags. The returned function
// releases the pins and the SPI port.
func (r *runner) device(c *cli.Context) (*mcp23xxx.Dev, func() error, error) {
	if r.open != nil {
		return r.open(c)
	}
	opts, err := r.opts(c)
	if err != nil {
		return nil, nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, nil, err
	}
	var cs gpio.PinOut
	if n := c.String(flagCS); n != "" {
		p, err := hostPin(flagCS, n)
		if err != nil {
			return nil, nil, err
		}
		cs = p
	}
	if n := c.String(flagReset); n != "" {
		p, err := hostPin(flagReset, n)
		if err != nil {
			return nil, nil, err
		}
		opts.Reset = p
	}
	if n := c.String(flagInt); n != "" {
		p, err := hostPin(flagInt, n)
		if err != nil {
			return nil, nil, err
		}
		// INT is active low and push-pull unless reconfigured.
		if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, nil, fmt.Errorf("--%s: %w", flagInt, err)
		}
		opts.IntPin = p
	}
	port, err := spireg.Open(c.String(flagSPI))
	if err != nil {
		return nil, nil, err
	}
	d, err := mcp23xxx.NewSPI(port, cs, &opts)
	if err != nil {
		return nil, nil, multierr.Append(err, port.Close())
	}
	r.log.Debug("opened", zap.Stringer("dev", d), zap.Stringer("port", port), zap.Stringer("speed", opts.Speed))
	return d, func() error { return multierr.Append(d.Close(), port.Close()) }, nil
}

// opts builds the driver options from the global flags. The chip keeps its
// configuration between invocations; it is only reset with --init or by the
// init command.
func (r *runner) opts(c *cli.Context) (mcp23xxx.Opts, error) {
	opts := mcp23xxx.DefaultOpts
	opts.Variant = mcp23xxx.Variant(c.String(flagVariant))
	opts.HardwareAddress = c.Bool(flagHAEN)
	opts.Addr = uint8(c.Uint(flagAddr))
	opts.Logger = r.log
	opts.NoInit = !c.Bool(flagInit) && c.Command.Name != "init"
	if err := opts.Speed.Set(c.String(flagSpeed)); err != nil {
		return opts, fmt.Errorf("--%s: %w", flagSpeed, err)
	}
	return opts, nil
}

func hostPin(flag, name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("--%s: no GPIO pin %q", flag, name)
	}
	return p, nil
}

// withDev runs fn on the opened device and always releases it.
func (r *runner) withDev(c *cli.Context, fn func(d *mcp23xxx.Dev) error) (err error) {
	d, closer, err := r.device(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closer())
	}()
	return fn(d)
}

func (r *runner) initChip(c *cli.Context) error {
	return r.withDev(c, func(d *mcp23xxx.Dev) error {
		fmt.Fprintf(c.App.Writer, "%s initialized\n", d)
		return nil
	})
}

func (r *runner) dump(c *cli.Context) error {
	return r.withDev(c, func(d *mcp23xxx.Dev) error {
		regs, err := d.Registers()
		if err != nil {
			return err
		}
		if c.Bool(flagNoColor) {
			_, err = fmt.Fprint(c.App.Writer, regs)
			return err
		}
		w := c.App.Writer
		if w == os.Stdout {
			w = colorable.NewColorableStdout()
		}
		return renderRegisters(w, regs, ansi256.Default)
	})
}

func (r *runner) get(c *cli.Context) error {
	return r.withDev(c, func(d *mcp23xxx.Dev) error {
		if c.NArg() == 0 {
			return d.Batch(func(tx *mcp23xxx.Tx) error {
				for _, port := range []mcp23xxx.Port{mcp23xxx.PortA, mcp23xxx.PortB} {
					v, err := tx.GetPort(port)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%s: 0b%08b\n", port, v)
				}
				return nil
			})
		}
		arg := c.Args().First()
		if port, err := parsePort(arg); err == nil {
			v, err := d.GetPort(port)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "0b%08b\n", v)
			return nil
		}
		port, pin, err := parsePin(arg)
		if err != nil {
			return err
		}
		l, err := d.GetPin(pin, port)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, l)
		return nil
	})
}

func (r *runner) set(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("set needs a target and a value")
	}
	target, value := c.Args().Get(0), c.Args().Get(1)
	if port, err := parsePort(target); err == nil {
		v, err := parseByte(value)
		if err != nil {
			return err
		}
		return r.withDev(c, func(d *mcp23xxx.Dev) error {
			return d.SetPort(v, port)
		})
	}
	port, pin, err := parsePin(target)
	if err != nil {
		return err
	}
	if value == "toggle" {
		return r.withDev(c, func(d *mcp23xxx.Dev) error {
			return d.TogglePin(pin, port)
		})
	}
	l, err := parseLevel(value)
	if err != nil {
		return err
	}
	return r.withDev(c, func(d *mcp23xxx.Dev) error {
		return d.SetPin(pin, port, l)
	})
}

func (r *runner) mode(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("mode needs a target and a mode")
	}
	target, value := c.Args().Get(0), c.Args().Get(1)
	if port, err := parsePort(target); err == nil {
		outputs, err := parseByte(value)
		if err != nil {
			return err
		}
		return r.withDev(c, func(d *mcp23xxx.Dev) error {
			if c.Bool(flagPullUp) {
				return d.SetPortModePullUp(outputs, port)
			}
			return d.SetPortMode(outputs, port)
		})
	}
	port, pin, err := parsePin(target)
	if err != nil {
		return err
	}
	m, err := parseMode(value)
	if err != nil {
		return err
	}
	return r.withDev(c, func(d *mcp23xxx.Dev) error {
		return d.SetPinMode(pin, port, m)
	})
}

func (r *runner) setup(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("setup needs a board file")
	}
	b, err := loadBoard(c.Args().First())
	if err != nil {
		return err
	}
	steps, err := b.resolve()
	if err != nil {
		return err
	}
	return r.withDev(c, func(d *mcp23xxx.Dev) error {
		if err := applyBoard(d, b, steps); err != nil {
			return err
		}
		r.log.Info("board applied", zap.String("file", c.Args().First()), zap.Int("pins", len(steps)))
		return nil
	})
}

func (r *runner) watch(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("watch needs a port")
	}
	if c.String(flagInt) == "" {
		return fmt.Errorf("watch needs --%s", flagInt)
	}
	port, err := parsePort(c.Args().First())
	if err != nil {
		return err
	}
	mask := uint8(c.Uint(flagMask))
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	return r.withDev(c, func(d *mcp23xxx.Dev) error {
		if err := configureWatch(d, port, mask, c.String(flagDefVal)); err != nil {
			return err
		}
		// Clear anything latched before the configuration.
		if _, err := d.IntCap(port); err != nil {
			return err
		}
		for ctx.Err() == nil {
			flags, captured, err := d.WaitForInterrupt(port, 100*time.Millisecond)
			if err != nil {
				return multierr.Append(err, d.DeleteAllInterruptsOnPort(port))
			}
			if flags == 0 {
				continue
			}
			r.log.Debug("interrupt", zap.Stringer("port", port), zap.Uint8("flags", flags), zap.Uint8("captured", captured))
			fmt.Fprintf(c.App.Writer, "%s flags 0b%08b captured 0b%08b\n", port, flags, captured)
		}
		return d.DeleteAllInterruptsOnPort(port)
	})
}

// configureWatch enables the interrupts of mask on port, comparing against
// defval when it is not empty.
func configureWatch(d *mcp23xxx.Dev, port mcp23xxx.Port, mask uint8, defval string) error {
	if defval == "" {
		return d.SetInterruptOnChangePort(mask, port)
	}
	v, err := parseByte(defval)
	if err != nil {
		return err
	}
	return d.SetInterruptOnDefValDevPort(mask, port, v)
}
