// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23xxx

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Variant is the type denoting a specific variant of the family.
type Variant string

const (
	// MCP23S17 16-bit SPI extender, push-pull outputs, hardware address pins.
	MCP23S17 Variant = "MCP23S17"
	// MCP23S18 16-bit SPI extender, open-drain outputs, no address pins.
	MCP23S18 Variant = "MCP23S18"
)

// ErrSelfTest is returned by Init when the pattern written to INTCONA is not
// read back. It usually means a wiring, power or addressing fault.
var ErrSelfTest = errors.New("mcp23xxx: self-test failed")

// Opts holds the configuration options.
type Opts struct {
	// Variant defaults to MCP23S17.
	Variant Variant
	// Speed is the SPI clock used by NewSPI. The chip supports up to 10MHz.
	Speed physic.Frequency
	// HardwareAddress enables IOCON.HAEN so the chip only answers to opcodes
	// carrying Addr. Only the MCP23S17 has address pins.
	HardwareAddress bool
	// Addr is the value strapped on A2..A0.
	Addr uint8
	// Reset is an optional host pin wired to the chip's RESET line. When set
	// Init pulses it low before configuring the chip.
	Reset gpio.PinOut
	// IntPin is an optional host pin wired to INTA or INTB, configured by the
	// caller for the edge matching IOCON.INTPOL.
	IntPin gpio.PinIn
	// Logger receives debug output. Defaults to a no-op logger.
	Logger *zap.Logger
	// NoInit attaches to a chip configured earlier, by another process for
	// example, instead of resetting it. The chip is left as is and the shadow
	// registers are loaded from IODIR and OLAT. Reset is not pulsed. With
	// HardwareAddress the chip must already have IOCON.HAEN set.
	NoInit bool
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Variant: MCP23S17,
	Speed:   10 * physic.MegaHertz,
}

// Dev is a handle to an MCP23S17 or MCP23S18.
//
// Besides the register level API, the pins are exposed as gpio.PinIO in Pins,
// indexed as [port][pin], and each port as a conn.Conn in Conns.
type Dev struct {
	Pins  [2][]Pin
	Conns [2]conn.Conn

	name       string
	opts       Opts
	t          transport
	s          shadow
	log        *zap.Logger
	registered []string
}

// NewSPI connects to the chip on p and initializes it.
//
// cs is the host pin wired to the chip's CS line. Pass nil when the SPI port
// drives chip select itself.
func NewSPI(p spi.Port, cs gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	f := opts.Speed
	if f == 0 {
		f = DefaultOpts.Speed
	}
	c, err := p.Connect(f, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("mcp23xxx: %w", err)
	}
	return New(NewBus(c), cs, opts)
}

// New returns a Dev talking through bus, and initializes the chip unless
// opts.NoInit is set.
func New(bus Bus, cs gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.Variant == "" {
		o.Variant = MCP23S17
	}
	switch o.Variant {
	case MCP23S17:
	case MCP23S18:
		if o.HardwareAddress {
			return nil, errors.New("mcp23xxx: MCP23S18 has no hardware address pins")
		}
	default:
		return nil, fmt.Errorf("mcp23xxx: unsupported variant %q", string(o.Variant))
	}
	if o.Addr > 7 {
		return nil, fmt.Errorf("mcp23xxx: address %d out of range 0-7", o.Addr)
	}
	if !o.HardwareAddress {
		o.Addr = 0
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	d := &Dev{
		name: string(o.Variant) + "_" + strconv.FormatInt(int64(0x20|o.Addr), 16),
		opts: o,
		t:    transport{bus: bus, cs: cs},
		log:  o.Logger.Named("mcp23xxx"),
	}
	if o.NoInit {
		if err := d.attach(); err != nil {
			return nil, err
		}
	} else if err := d.Init(); err != nil {
		return nil, err
	}
	d.makePins()
	return d, nil
}

// Init resets and configures the chip, then verifies it answers.
//
// The sequence is: chip select released, optional hardware reset pulse, all
// pins input without pull-up, every other writable register zeroed, IOCON
// set for the addressing mode, then a self-test writing a pattern to INTCONA
// and reading it back. On success INTCONA is restored to 0 and the shadow
// registers are zeroed. On failure the shadow is left untouched and an error
// wrapping ErrSelfTest is returned when the chip did not echo the pattern.
func (d *Dev) Init() error {
	if err := d.releaseCS(); err != nil {
		return err
	}
	if r := d.opts.Reset; r != nil {
		d.log.Debug("hardware reset", zap.String("pin", r.Name()))
		if err := r.Out(gpio.Low); err != nil {
			return fmt.Errorf("mcp23xxx: reset: %w", err)
		}
		time.Sleep(10 * time.Millisecond)
		if err := r.Out(gpio.High); err != nil {
			return fmt.Errorf("mcp23xxx: reset: %w", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	d.t.addr = 0
	err := d.t.transaction(func() error {
		if err := d.softReset(); err != nil {
			return err
		}
		iocon := uint8(0)
		if d.opts.HardwareAddress {
			iocon = ioconHAEN
		}
		if err := d.t.write(IOCONA, iocon); err != nil {
			return err
		}
		// From here on the chip only answers to its own address.
		d.t.addr = d.opts.Addr
		if err := d.t.write(IOCONB, iocon); err != nil {
			return err
		}
		if err := d.t.write(INTCONA, selfTestPattern); err != nil {
			return err
		}
		got, err := d.t.read(INTCONA)
		if err != nil {
			return err
		}
		if got != selfTestPattern {
			return fmt.Errorf("%w: wrote %#02x to INTCONA, read back %#02x", ErrSelfTest, selfTestPattern, got)
		}
		return d.t.write(INTCONA, 0)
	})
	if err != nil {
		d.log.Debug("init failed", zap.Error(err))
		return err
	}
	d.s = shadow{}
	d.log.Debug("initialized", zap.String("dev", d.name), zap.Uint8("addr", d.t.addr))
	return nil
}

// attach loads the shadow registers from a chip that is already configured.
// IODIR and OLAT are read in one transaction; OLAT holds the last levels
// written to GPIO, unlike GPIO which returns the pin levels.
func (d *Dev) attach() error {
	if err := d.releaseCS(); err != nil {
		return err
	}
	d.t.addr = d.opts.Addr
	var s shadow
	err := d.t.transaction(func() error {
		dir, err := d.t.readSeq(IODIRA, 2)
		if err != nil {
			return err
		}
		out, err := d.t.readSeq(OLATA, 2)
		if err != nil {
			return err
		}
		copy(s.dir[:], dir)
		copy(s.out[:], out)
		return nil
	})
	if err != nil {
		return err
	}
	d.s = s
	d.log.Debug("attached", zap.String("dev", d.name), zap.Binary("iodir", s.dir[:]), zap.Binary("olat", s.out[:]))
	return nil
}

func (d *Dev) releaseCS() error {
	if d.t.cs == nil {
		return nil
	}
	if err := d.t.cs.Out(gpio.High); err != nil {
		return fmt.Errorf("mcp23xxx: chip select: %w", err)
	}
	return nil
}

// softReset puts the registers in their power-on state: both IODIR as input
// with pull-ups off, then zeros from IPOLA through GPIOB in one auto-increment
// transfer.
func (d *Dev) softReset() error {
	for _, p := range []Port{PortA, PortB} {
		if err := d.t.write(p.reg(IODIRA), portDirection(0)); err != nil {
			return err
		}
		if err := d.t.write(p.reg(GPPUA), 0); err != nil {
			return err
		}
	}
	return d.t.writeSeq(IPOLA, make([]byte, GPIOB-IPOLA+1))
}

// Batch runs fn inside a single bus transaction. The transaction is always
// ended, even when fn fails; errors from fn and from ending the transaction
// are combined.
//
// fn must only use tx; calling methods of d from fn deadlocks with the
// default Bus.
func (d *Dev) Batch(fn func(tx *Tx) error) error {
	return d.t.transaction(func() error {
		tx := &Tx{d: d}
		defer func() { tx.done = true }()
		return fn(tx)
	})
}

// Direction returns the IODIR shadow of port. It does not access the bus.
// It returns 0 for an invalid port.
func (d *Dev) Direction(port Port) uint8 {
	if port > PortB {
		return 0
	}
	return d.s.dir[port]
}

// Output returns the GPIO shadow of port. It does not access the bus.
// It returns 0 for an invalid port.
func (d *Dev) Output(port Port) uint8 {
	if port > PortB {
		return 0
	}
	return d.s.out[port]
}

// String returns the variant and the address the chip answers to.
func (d *Dev) String() string {
	return d.name
}

// Halt implements conn.Resource.
//
// It turns every pin into an input without pull-up.
func (d *Dev) Halt() error {
	return d.Batch(func(tx *Tx) error {
		return multierr.Combine(tx.SetPortMode(0, PortA), tx.SetPortMode(0, PortB))
	})
}

// Close removes the pins from gpioreg. The chip is left as is.
func (d *Dev) Close() error {
	var err error
	for _, name := range d.registered {
		err = multierr.Append(err, gpioreg.Unregister(name))
	}
	d.registered = nil
	return err
}

var _ conn.Resource = &Dev{}
