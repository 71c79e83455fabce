// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23xxx

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/pin"
)

// ErrPinNotInGroup is returned by WaitForEdge when the pin that raised the
// interrupt is not part of the group.
var ErrPinNotInGroup = errors.New("mcp23xxx: interrupting pin not in group")

// The internal structure for a group of pins.
type pinGroup struct {
	dev         *Dev
	port        Port
	pins        []*portpin
	defaultMask gpio.GPIOValue
}

// Group returns a gpio.Group made up of the specified pins of port. Bit n of
// the group values maps to pins[n].
func (d *Dev) Group(port Port, pins ...int) (gpio.Group, error) {
	if port > PortB {
		return nil, ErrInvalidPort
	}
	if len(pins) == 0 || len(pins) > 8 {
		return nil, fmt.Errorf("mcp23xxx: a group has 1 to 8 pins, got %d", len(pins))
	}
	grouppins := make([]*portpin, len(pins))
	for ix, number := range pins {
		if number < 0 || number > 7 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidPin, number)
		}
		pp, ok := d.Pins[port][number].(*portpin)
		if !ok {
			return nil, fmt.Errorf("mcp23xxx: pin %d is not a device pin", number)
		}
		grouppins[ix] = pp
	}
	defMask := gpio.GPIOValue((1 << len(pins)) - 1)
	return &pinGroup{dev: d, port: port, pins: grouppins, defaultMask: defMask}, nil
}

// Pins returns the set of pin.Pin that make up that group.
func (pg *pinGroup) Pins() []pin.Pin {
	pins := make([]pin.Pin, len(pg.pins))

	for ix, p := range pg.pins {
		pins[ix] = p
	}
	return pins
}

// Given the offset within the group, return the corresponding GPIO pin.
func (pg *pinGroup) ByOffset(offset int) pin.Pin {
	return pg.pins[offset]
}

// Given the specific name of a pin, return it. If it can't be found, nil is
// returned.
func (pg *pinGroup) ByName(name string) pin.Pin {
	for _, pin := range pg.pins {
		if pin.Name() == name {
			return pin
		}
	}
	return nil
}

// Given the GPIO pin number, return that pin from the set.
func (pg *pinGroup) ByNumber(number int) pin.Pin {
	for _, pin := range pg.pins {
		if pin.Number() == number {
			return pin
		}
	}
	return nil
}

// Out writes value to the specified pins of the group. If mask is 0, the
// default mask of all pins in the group is used. Pins not yet configured as
// output are switched to output first. The new level is computed from the
// output shadow, so the chip is not read.
func (pg *pinGroup) Out(value, mask gpio.GPIOValue) error {
	wr, wrMask := pg.toPort(value, mask)
	return pg.dev.Batch(func(tx *Tx) error {
		dir := pg.dev.s.dir[pg.port]
		if dir&wrMask != 0 {
			if err := tx.writeDirection(pg.port, dir&^wrMask); err != nil {
				return err
			}
		}
		out := pg.dev.s.out[pg.port]&^wrMask | wr
		return tx.SetPort(out, pg.port)
	})
}

// Read reads from the device and port and returns the state of the GPIO
// pins in the group. If a pin specified by mask is not configured for
// input, it is transparently re-configured.
func (pg *pinGroup) Read(mask gpio.GPIOValue) (result gpio.GPIOValue, err error) {
	_, rmask := pg.toPort(0, mask)
	var v uint8
	err = pg.dev.Batch(func(tx *Tx) error {
		dir := pg.dev.s.dir[pg.port]
		if dir&rmask != rmask {
			if err := tx.writeDirection(pg.port, dir|rmask); err != nil {
				return err
			}
		}
		var err error
		v, err = tx.GetPort(pg.port)
		return err
	})
	if err != nil {
		return 0, err
	}
	// Now convert the set pins into the Group value
	for ix, pin := range pg.pins {
		if rmask&(1<<pin.pinbit) != 0 && v&(1<<pin.pinbit) != 0 {
			result |= 1 << ix
		}
	}
	return result, nil
}

// toPort converts a group relative value and mask to the port value and
// mask. A zero mask selects every pin of the group.
func (pg *pinGroup) toPort(value, mask gpio.GPIOValue) (wr, wrMask uint8) {
	if mask == 0 {
		mask = pg.defaultMask
	} else {
		mask &= pg.defaultMask
	}
	for bit, pin := range pg.pins {
		if mask&(1<<bit) == 0 {
			continue
		}
		wrMask |= 1 << pin.pinbit
		if value&(1<<bit) != 0 {
			wr |= 1 << pin.pinbit
		}
	}
	return wr, wrMask
}

// WaitForEdge waits for the chip's INT output on Opts.IntPin, then returns
// the GPIO pin number on the device that changed.
//
// The MCP23XXX devices only detect change, so the returned edge is always
// gpio.NoEdge. The pins must have been configured for interrupts, see
// SetInterruptOnChangePort. When the pin that changed is not part of the
// group, its number is returned along with ErrPinNotInGroup. On timeout -1
// and no error are returned.
func (pg *pinGroup) WaitForEdge(timeout time.Duration) (number int, edge gpio.Edge, err error) {
	flags, _, err := pg.dev.WaitForInterrupt(pg.port, timeout)
	if err != nil || flags == 0 {
		return -1, gpio.NoEdge, err
	}
	for bit := range 8 {
		if flags&(1<<bit) == 0 {
			continue
		}
		if pg.ByNumber(bit) == nil {
			return bit, gpio.NoEdge, ErrPinNotInGroup
		}
		return bit, gpio.NoEdge, nil
	}
	return -1, gpio.NoEdge, nil
}

// Halt interrupts a pending WaitForEdge() call if one is in process.
func (pg *pinGroup) Halt() error {
	if pg.dev.opts.IntPin != nil {
		var ifpin interface{} = pg.dev.opts.IntPin
		if r, ok := ifpin.(conn.Resource); ok {
			return r.Halt()
		}
	}
	return nil
}

// String returns the device variant name and configured pins for the group.
func (pg *pinGroup) String() string {
	s := fmt.Sprintf("%s - [ ", pg.dev)
	for ix := range len(pg.pins) {
		s += fmt.Sprintf("%d ", pg.pins[ix].Number())
	}
	s += "]"
	return s
}

var _ gpio.Group = &pinGroup{}
