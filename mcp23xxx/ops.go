// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23xxx

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Tx is a handle on an open bus transaction, obtained with Dev.Batch.
//
// Its methods are the same operations as Dev's but never open a transaction
// of their own. A Tx is only valid until the Batch callback returns; after
// that its methods return ErrTxClosed without touching the bus.
type Tx struct {
	d    *Dev
	done bool
}

// ErrTxClosed is returned when a Tx is used after its Batch returned.
var ErrTxClosed = errors.New("mcp23xxx: transaction already ended")

func (tx *Tx) read(reg uint8) (uint8, error) {
	if tx.done {
		return 0, ErrTxClosed
	}
	return tx.d.t.read(reg)
}

func (tx *Tx) readSeq(reg uint8, n int) ([]byte, error) {
	if tx.done {
		return nil, ErrTxClosed
	}
	return tx.d.t.readSeq(reg, n)
}

func (tx *Tx) write(reg, v uint8) error {
	if tx.done {
		return ErrTxClosed
	}
	return tx.d.t.write(reg, v)
}

func (tx *Tx) writePair(reg, a, b uint8) error {
	if tx.done {
		return ErrTxClosed
	}
	return tx.d.t.writePair(reg, a, b)
}

// SetPinMode configures direction and pull-up of one pin. GPPU is read from
// the chip, IODIR comes from the shadow. GPPU is written before IODIR.
func (tx *Tx) SetPinMode(pin uint8, port Port, mode Mode) error {
	if err := checkPin(port, pin); err != nil {
		return err
	}
	if mode > InputPullUp {
		return ErrInvalidMode
	}
	pullup, err := tx.read(port.reg(GPPUA))
	if err != nil {
		return err
	}
	dir, pullup := pinDirection(tx.d.s.dir[port], pullup, pin, mode)
	if err := tx.write(port.reg(GPPUA), pullup); err != nil {
		return err
	}
	return tx.writeDirection(port, dir)
}

// SetPortMode configures all pins of port at once. A bit set in outputs makes
// that pin an output; the IODIR register receives the complement. Pull-ups
// of the port are disabled.
func (tx *Tx) SetPortMode(outputs uint8, port Port) error {
	if port > PortB {
		return ErrInvalidPort
	}
	if err := tx.writeDirection(port, portDirection(outputs)); err != nil {
		return err
	}
	return tx.write(port.reg(GPPUA), 0)
}

// SetPortModePullUp is SetPortMode with the pull-up enabled on every input.
func (tx *Tx) SetPortModePullUp(outputs uint8, port Port) error {
	if port > PortB {
		return ErrInvalidPort
	}
	if err := tx.write(port.reg(GPPUA), portDirection(outputs)); err != nil {
		return err
	}
	return tx.writeDirection(port, portDirection(outputs))
}

// SetPin drives one output pin.
func (tx *Tx) SetPin(pin uint8, port Port, l gpio.Level) error {
	if err := checkPin(port, pin); err != nil {
		return err
	}
	return tx.writeOutput(port, pinLevel(tx.d.s.out[port], pin, l))
}

// TogglePin inverts the output level of one pin.
func (tx *Tx) TogglePin(pin uint8, port Port) error {
	if err := checkPin(port, pin); err != nil {
		return err
	}
	return tx.writeOutput(port, togglePinLevel(tx.d.s.out[port], pin))
}

// SetAllPins drives every pin of port to l.
func (tx *Tx) SetAllPins(port Port, l gpio.Level) error {
	if port > PortB {
		return ErrInvalidPort
	}
	return tx.writeOutput(port, allLevels(l))
}

// SetPort writes the output levels of port.
func (tx *Tx) SetPort(levels uint8, port Port) error {
	if port > PortB {
		return ErrInvalidPort
	}
	return tx.writeOutput(port, levels)
}

// SetPorts writes the output levels of both ports in a single transfer, so
// GPIOA and GPIOB are updated under the same chip select.
func (tx *Tx) SetPorts(levelsA, levelsB uint8) error {
	if err := tx.writePair(GPIOA, levelsA, levelsB); err != nil {
		return err
	}
	tx.d.s.out = [2]uint8{levelsA, levelsB}
	return nil
}

// SetPinX configures a pin and its output level in one call. The writes
// are GPPU, IODIR then GPIO; they are not atomic as a whole.
func (tx *Tx) SetPinX(pin uint8, port Port, mode Mode, l gpio.Level) error {
	if err := checkPin(port, pin); err != nil {
		return err
	}
	if mode > InputPullUp {
		return ErrInvalidMode
	}
	pullup, err := tx.read(port.reg(GPPUA))
	if err != nil {
		return err
	}
	dir, pullup := pinDirection(tx.d.s.dir[port], pullup, pin, mode)
	if err := tx.write(port.reg(GPPUA), pullup); err != nil {
		return err
	}
	if err := tx.writeDirection(port, dir); err != nil {
		return err
	}
	return tx.writeOutput(port, pinLevel(tx.d.s.out[port], pin, l))
}

// SetPortX configures direction (outputs mask, as in SetPortMode) and output
// levels of port. IODIR is written before GPIO. Pull-ups are left as is.
func (tx *Tx) SetPortX(outputs, levels uint8, port Port) error {
	if port > PortB {
		return ErrInvalidPort
	}
	if err := tx.writeDirection(port, portDirection(outputs)); err != nil {
		return err
	}
	return tx.writeOutput(port, levels)
}

// GetPin reads the level of one pin from the chip.
func (tx *Tx) GetPin(pin uint8, port Port) (gpio.Level, error) {
	if err := checkPin(port, pin); err != nil {
		return gpio.Low, err
	}
	v, err := tx.read(port.reg(GPIOA))
	if err != nil {
		return gpio.Low, err
	}
	return gpio.Level(v&(1<<pin) != 0), nil
}

// GetPort reads the levels of every pin of port from the chip.
func (tx *Tx) GetPort(port Port) (uint8, error) {
	if port > PortB {
		return 0, ErrInvalidPort
	}
	return tx.read(port.reg(GPIOA))
}

// SetPinPullUp enables or disables the 100kΩ pull-up of one pin.
func (tx *Tx) SetPinPullUp(pin uint8, port Port, on bool) error {
	return tx.updateBit(port.reg(GPPUA), pin, port, on)
}

// SetPortPullUp sets the pull-up register of port.
func (tx *Tx) SetPortPullUp(pullups uint8, port Port) error {
	if port > PortB {
		return ErrInvalidPort
	}
	return tx.write(port.reg(GPPUA), pullups)
}

// PortPullUp reads the pull-up register of port.
func (tx *Tx) PortPullUp(port Port) (uint8, error) {
	if port > PortB {
		return 0, ErrInvalidPort
	}
	return tx.read(port.reg(GPPUA))
}

// SetPinPolarity inverts, or not, the level reported by GPIO for one pin.
func (tx *Tx) SetPinPolarity(pin uint8, port Port, inverted bool) error {
	return tx.updateBit(port.reg(IPOLA), pin, port, inverted)
}

// SetPortPolarity sets the polarity register of port.
func (tx *Tx) SetPortPolarity(inverted uint8, port Port) error {
	if port > PortB {
		return ErrInvalidPort
	}
	return tx.write(port.reg(IPOLA), inverted)
}

// PinPolarity reports whether the input of one pin is inverted.
func (tx *Tx) PinPolarity(pin uint8, port Port) (bool, error) {
	if err := checkPin(port, pin); err != nil {
		return false, err
	}
	v, err := tx.read(port.reg(IPOLA))
	return v&(1<<pin) != 0, err
}

// ReadRegister returns the raw content of reg.
func (tx *Tx) ReadRegister(reg uint8) (uint8, error) {
	if reg >= registerCount {
		return 0, fmt.Errorf("%w: %#02x", ErrInvalidRegister, reg)
	}
	return tx.read(reg)
}

// WriteRegister sets the raw content of reg. Writes to IODIR, GPIO and OLAT
// are reflected in the shadow registers.
//
// IOCON.BANK is rejected with ErrBankMode since the driver only knows the
// BANK=0 register map. Writing IOCON.HAEN switches the opcode address to
// Opts.Addr when set and to 0 when cleared.
func (tx *Tx) WriteRegister(reg, v uint8) error {
	if reg >= registerCount {
		return fmt.Errorf("%w: %#02x", ErrInvalidRegister, reg)
	}
	switch reg {
	case IOCONA, IOCONB:
		if v&ioconBank != 0 {
			return ErrBankMode
		}
		if err := tx.write(reg, v); err != nil {
			return err
		}
		// IOCONA and IOCONB are the same register.
		tx.d.t.addr = 0
		if v&ioconHAEN != 0 {
			tx.d.t.addr = tx.d.opts.Addr
		}
		return nil
	case IODIRA, IODIRB:
		return tx.writeDirection(Port(reg-IODIRA), v)
	case GPIOA, GPIOB:
		return tx.writeOutput(Port(reg-GPIOA), v)
	case OLATA, OLATB:
		if err := tx.write(reg, v); err != nil {
			return err
		}
		tx.d.s.out[reg-OLATA] = v
		return nil
	}
	return tx.write(reg, v)
}

// writeDirection persists IODIR and commits it to the shadow once written.
func (tx *Tx) writeDirection(port Port, dir uint8) error {
	if err := tx.write(port.reg(IODIRA), dir); err != nil {
		return err
	}
	tx.d.s.dir[port] = dir
	return nil
}

// writeOutput persists GPIO and commits it to the shadow once written.
func (tx *Tx) writeOutput(port Port, out uint8) error {
	if err := tx.write(port.reg(GPIOA), out); err != nil {
		return err
	}
	tx.d.s.out[port] = out
	return nil
}

// updateBit read-modify-writes one bit of a register not held in the shadow.
func (tx *Tx) updateBit(reg, pin uint8, port Port, on bool) error {
	if err := checkPin(port, pin); err != nil {
		return err
	}
	v, err := tx.read(reg)
	if err != nil {
		return err
	}
	return tx.write(reg, setBit(v, pin, on))
}

// The Dev methods below run the Tx operation of the same name in their own
// transaction.

// SetPinMode configures direction and pull-up of one pin.
func (d *Dev) SetPinMode(pin uint8, port Port, mode Mode) error {
	return d.Batch(func(tx *Tx) error { return tx.SetPinMode(pin, port, mode) })
}

// SetPortMode configures all pins of port; a bit set in outputs is an output.
func (d *Dev) SetPortMode(outputs uint8, port Port) error {
	return d.Batch(func(tx *Tx) error { return tx.SetPortMode(outputs, port) })
}

// SetPortModePullUp is SetPortMode with pull-ups on every input.
func (d *Dev) SetPortModePullUp(outputs uint8, port Port) error {
	return d.Batch(func(tx *Tx) error { return tx.SetPortModePullUp(outputs, port) })
}

// SetPin drives one output pin.
func (d *Dev) SetPin(pin uint8, port Port, l gpio.Level) error {
	return d.Batch(func(tx *Tx) error { return tx.SetPin(pin, port, l) })
}

// TogglePin inverts the output level of one pin.
func (d *Dev) TogglePin(pin uint8, port Port) error {
	return d.Batch(func(tx *Tx) error { return tx.TogglePin(pin, port) })
}

// SetAllPins drives every pin of port to l.
func (d *Dev) SetAllPins(port Port, l gpio.Level) error {
	return d.Batch(func(tx *Tx) error { return tx.SetAllPins(port, l) })
}

// SetPort writes the output levels of port.
func (d *Dev) SetPort(levels uint8, port Port) error {
	return d.Batch(func(tx *Tx) error { return tx.SetPort(levels, port) })
}

// SetPorts writes the output levels of both ports in a single transfer.
func (d *Dev) SetPorts(levelsA, levelsB uint8) error {
	return d.Batch(func(tx *Tx) error { return tx.SetPorts(levelsA, levelsB) })
}

// SetPinX configures a pin and its output level.
func (d *Dev) SetPinX(pin uint8, port Port, mode Mode, l gpio.Level) error {
	return d.Batch(func(tx *Tx) error { return tx.SetPinX(pin, port, mode, l) })
}

// SetPortX configures direction and output levels of port.
func (d *Dev) SetPortX(outputs, levels uint8, port Port) error {
	return d.Batch(func(tx *Tx) error { return tx.SetPortX(outputs, levels, port) })
}

// GetPin reads the level of one pin from the chip.
func (d *Dev) GetPin(pin uint8, port Port) (l gpio.Level, err error) {
	err = d.Batch(func(tx *Tx) error {
		l, err = tx.GetPin(pin, port)
		return err
	})
	return l, err
}

// GetPort reads the levels of port from the chip.
func (d *Dev) GetPort(port Port) (v uint8, err error) {
	err = d.Batch(func(tx *Tx) error {
		v, err = tx.GetPort(port)
		return err
	})
	return v, err
}

// SetPinPullUp enables or disables the pull-up of one pin.
func (d *Dev) SetPinPullUp(pin uint8, port Port, on bool) error {
	return d.Batch(func(tx *Tx) error { return tx.SetPinPullUp(pin, port, on) })
}

// SetPortPullUp sets the pull-up register of port.
func (d *Dev) SetPortPullUp(pullups uint8, port Port) error {
	return d.Batch(func(tx *Tx) error { return tx.SetPortPullUp(pullups, port) })
}

// PortPullUp reads the pull-up register of port.
func (d *Dev) PortPullUp(port Port) (v uint8, err error) {
	err = d.Batch(func(tx *Tx) error {
		v, err = tx.PortPullUp(port)
		return err
	})
	return v, err
}

// SetPinPolarity inverts, or not, the input of one pin.
func (d *Dev) SetPinPolarity(pin uint8, port Port, inverted bool) error {
	return d.Batch(func(tx *Tx) error { return tx.SetPinPolarity(pin, port, inverted) })
}

// SetPortPolarity sets the polarity register of port.
func (d *Dev) SetPortPolarity(inverted uint8, port Port) error {
	return d.Batch(func(tx *Tx) error { return tx.SetPortPolarity(inverted, port) })
}

// PinPolarity reports whether the input of one pin is inverted.
func (d *Dev) PinPolarity(pin uint8, port Port) (inverted bool, err error) {
	err = d.Batch(func(tx *Tx) error {
		inverted, err = tx.PinPolarity(pin, port)
		return err
	})
	return inverted, err
}

// ReadRegister returns the raw content of reg.
func (d *Dev) ReadRegister(reg uint8) (v uint8, err error) {
	err = d.Batch(func(tx *Tx) error {
		v, err = tx.ReadRegister(reg)
		return err
	})
	return v, err
}

// WriteRegister sets the raw content of reg.
func (d *Dev) WriteRegister(reg, v uint8) error {
	return d.Batch(func(tx *Tx) error { return tx.WriteRegister(reg, v) })
}
