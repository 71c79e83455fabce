// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23xxx

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
)

// Pin extends gpio.PinIO interface with features supported by mcp23xxx
// devices.
type Pin interface {
	gpio.PinIO
	pin.PinFunc
	// SetPolarityInverted if set to true, GPIO register bit reflects the
	// inverted logic state of the input pin.
	SetPolarityInverted(p bool) error
	// IsPolarityInverted returns true if the value of the input pin reflects
	// inverted logic state.
	IsPolarityInverted() (bool, error)
}

// makePins builds Pins and Conns and registers the pins in gpioreg.
// Registration failures, like a name already taken, are ignored.
func (d *Dev) makePins() {
	for _, port := range []Port{PortA, PortB} {
		pins := make([]Pin, 8)
		for i := range pins {
			p := &portpin{dev: d, port: port, pinbit: uint8(i)}
			pins[i] = p
			if err := gpioreg.Register(p); err == nil {
				d.registered = append(d.registered, p.Name())
			}
		}
		d.Pins[port] = pins
		d.Conns[port] = &portConn{dev: d, port: port}
	}
}

// portConn exposes a port as a half duplex conn.Conn. Writes set the port
// output levels, reads sample the port levels, one byte per access.
type portConn struct {
	dev  *Dev
	port Port
}

// Tx takes bytes to either read or write. Only half duplex is supported so
// it is an error to pass 2 buffers at once. The bytes are all transferred in
// one bus transaction.
func (c *portConn) Tx(w, r []byte) error {
	if len(w) > 0 && len(r) > 0 {
		return errors.New("mcp23xxx: only conn.Half duplex is supported")
	}
	return c.dev.Batch(func(tx *Tx) error {
		for _, b := range w {
			if err := tx.SetPort(b, c.port); err != nil {
				return err
			}
		}
		for i := range r {
			v, err := tx.GetPort(c.port)
			if err != nil {
				return err
			}
			r[i] = v
		}
		return nil
	})
}

// Duplex returns that this is a half duplex connection.
func (c *portConn) Duplex() conn.Duplex {
	return conn.Half
}

// String provides the name of this connection.
func (c *portConn) String() string {
	return c.dev.name + "_P" + c.port.String()
}

type portpin struct {
	dev    *Dev
	port   Port
	pinbit uint8
}

func (p *portpin) String() string {
	return p.Name()
}

func (p *portpin) Halt() error {
	// To halt all drive, set to high-impedance input
	return p.In(gpio.Float, gpio.NoEdge)
}

func (p *portpin) Name() string {
	return p.dev.name + "_P" + p.port.String() + "_" + strconv.Itoa(int(p.pinbit))
}

func (p *portpin) Number() int {
	return int(p.pinbit)
}

func (p *portpin) Function() string {
	return string(p.Func())
}

// In configures the pin as input. PullUp enables the internal pull-up,
// PullNoChange keeps the current pull-up setting.
//
// The chip only detects changes: BothEdges interrupts on any change,
// RisingEdge interrupts while the pin differs from a low DEFVAL and
// FallingEdge while it differs from a high DEFVAL. NoEdge disables the
// interrupt of the pin.
func (p *portpin) In(pull gpio.Pull, edge gpio.Edge) error {
	if pull == gpio.PullDown {
		return errors.New("mcp23xxx: PullDown is not supported")
	}
	return p.dev.Batch(func(tx *Tx) error {
		mode := Input
		switch pull {
		case gpio.PullUp:
			mode = InputPullUp
		case gpio.PullNoChange:
			v, err := tx.PortPullUp(p.port)
			if err != nil {
				return err
			}
			if v&(1<<p.pinbit) != 0 {
				mode = InputPullUp
			}
		}
		if err := tx.SetPinMode(p.pinbit, p.port, mode); err != nil {
			return err
		}
		switch edge {
		case gpio.BothEdges:
			return tx.SetInterruptOnChangePin(p.pinbit, p.port)
		case gpio.RisingEdge:
			return tx.SetInterruptOnDefValDevPin(p.pinbit, p.port, gpio.Low)
		case gpio.FallingEdge:
			return tx.SetInterruptOnDefValDevPin(p.pinbit, p.port, gpio.High)
		default:
			return tx.disableInterruptPin(p.pinbit, p.port)
		}
	})
}

func (p *portpin) Read() gpio.Level {
	l, _ := p.dev.GetPin(p.pinbit, p.port)
	return l
}

// WaitForEdge waits on Opts.IntPin and reports whether this pin is flagged
// in INTF. It returns false when no interrupt pin is configured.
func (p *portpin) WaitForEdge(timeout time.Duration) bool {
	flags, _, err := p.dev.WaitForInterrupt(p.port, timeout)
	return err == nil && flags&(1<<p.pinbit) != 0
}

func (p *portpin) Pull() gpio.Pull {
	v, err := p.dev.PortPullUp(p.port)
	if err != nil {
		return gpio.PullNoChange
	}
	if v&(1<<p.pinbit) != 0 {
		return gpio.PullUp
	}
	return gpio.Float
}

func (p *portpin) DefaultPull() gpio.Pull {
	return gpio.Float
}

func (p *portpin) Out(l gpio.Level) error {
	return p.dev.SetPinX(p.pinbit, p.port, Output, l)
}

func (p *portpin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return errors.New("mcp23xxx: PWM is not supported")
}

// Func reports the direction held in the IODIR shadow.
func (p *portpin) Func() pin.Func {
	if p.dev.Direction(p.port)&(1<<p.pinbit) != 0 {
		return gpio.IN
	}
	return gpio.OUT
}

func (p *portpin) SupportedFuncs() []pin.Func {
	return supportedFuncs[:]
}

func (p *portpin) SetFunc(f pin.Func) error {
	switch f {
	case gpio.IN:
		return p.dev.SetPinMode(p.pinbit, p.port, Input)
	case gpio.OUT:
		return p.dev.SetPinMode(p.pinbit, p.port, Output)
	default:
		return fmt.Errorf("mcp23xxx: Function not supported: %s", f)
	}
}

func (p *portpin) SetPolarityInverted(pol bool) error {
	return p.dev.SetPinPolarity(p.pinbit, p.port, pol)
}

func (p *portpin) IsPolarityInverted() (bool, error) {
	return p.dev.PinPolarity(p.pinbit, p.port)
}

var supportedFuncs = [...]pin.Func{gpio.IN, gpio.OUT}

var _ Pin = &portpin{}
var _ pin.PinFunc = &portpin{}
var _ conn.Conn = &portConn{}
