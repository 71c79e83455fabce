// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23xxx

import (
	"errors"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// ErrNoIntPin is returned when waiting for an interrupt without Opts.IntPin.
var ErrNoIntPin = errors.New("mcp23xxx: no interrupt pin configured")

// SetInterruptOnChangePin makes pin an input raising an interrupt whenever its
// level changes.
//
// The writes are IODIR, GPIO (shadow re-asserted), GPINTEN, and INTCON when
// the pin was previously in compare-against-DEFVAL mode.
func (tx *Tx) SetInterruptOnChangePin(pin uint8, port Port) error {
	if err := checkPin(port, pin); err != nil {
		return err
	}
	en, err := tx.read(port.reg(GPINTENA))
	if err != nil {
		return err
	}
	con, err := tx.read(port.reg(INTCONA))
	if err != nil {
		return err
	}
	if err := tx.writeDirection(port, setBit(tx.d.s.dir[port], pin, true)); err != nil {
		return err
	}
	if err := tx.writeOutput(port, tx.d.s.out[port]); err != nil {
		return err
	}
	if err := tx.write(port.reg(GPINTENA), setBit(en, pin, true)); err != nil {
		return err
	}
	if con&(1<<pin) != 0 {
		return tx.write(port.reg(INTCONA), setBit(con, pin, false))
	}
	return nil
}

// SetInterruptOnDefValDevPin makes pin an input raising an interrupt while
// its level differs from l.
//
// The writes are IODIR, GPIO, GPINTEN, INTCON then DEFVAL.
func (tx *Tx) SetInterruptOnDefValDevPin(pin uint8, port Port, l gpio.Level) error {
	if err := checkPin(port, pin); err != nil {
		return err
	}
	en, err := tx.read(port.reg(GPINTENA))
	if err != nil {
		return err
	}
	con, err := tx.read(port.reg(INTCONA))
	if err != nil {
		return err
	}
	def, err := tx.read(port.reg(DEFVALA))
	if err != nil {
		return err
	}
	if err := tx.writeDirection(port, setBit(tx.d.s.dir[port], pin, true)); err != nil {
		return err
	}
	if err := tx.writeOutput(port, tx.d.s.out[port]); err != nil {
		return err
	}
	if err := tx.write(port.reg(GPINTENA), setBit(en, pin, true)); err != nil {
		return err
	}
	if err := tx.write(port.reg(INTCONA), setBit(con, pin, true)); err != nil {
		return err
	}
	return tx.write(port.reg(DEFVALA), pinLevel(def, pin, l))
}

// SetInterruptOnChangePort makes the pins set in mask inputs raising an
// interrupt on change. GPINTEN is replaced by mask, so interrupts of the
// other pins of the port are disabled.
func (tx *Tx) SetInterruptOnChangePort(mask uint8, port Port) error {
	if port > PortB {
		return ErrInvalidPort
	}
	con, err := tx.read(port.reg(INTCONA))
	if err != nil {
		return err
	}
	if err := tx.writeDirection(port, tx.d.s.dir[port]|mask); err != nil {
		return err
	}
	if err := tx.write(port.reg(GPINTENA), mask); err != nil {
		return err
	}
	if con&mask != 0 {
		return tx.write(port.reg(INTCONA), con&^mask)
	}
	return nil
}

// SetInterruptOnDefValDevPort makes the pins set in mask inputs raising an
// interrupt while they differ from the matching bit of defval. Interrupts
// already enabled on other pins are kept. DEFVAL is replaced by defval.
func (tx *Tx) SetInterruptOnDefValDevPort(mask uint8, port Port, defval uint8) error {
	if port > PortB {
		return ErrInvalidPort
	}
	en, err := tx.read(port.reg(GPINTENA))
	if err != nil {
		return err
	}
	con, err := tx.read(port.reg(INTCONA))
	if err != nil {
		return err
	}
	if err := tx.writeDirection(port, tx.d.s.dir[port]|mask); err != nil {
		return err
	}
	if err := tx.write(port.reg(GPINTENA), en|mask); err != nil {
		return err
	}
	if err := tx.write(port.reg(INTCONA), con|mask); err != nil {
		return err
	}
	return tx.write(port.reg(DEFVALA), defval)
}

// DeleteAllInterruptsOnPort clears GPINTEN of port. INTCON and DEFVAL keep
// their content, which has no effect while GPINTEN is clear.
func (tx *Tx) DeleteAllInterruptsOnPort(port Port) error {
	if port > PortB {
		return ErrInvalidPort
	}
	return tx.write(port.reg(GPINTENA), 0)
}

// disableInterruptPin clears the GPINTEN bit of pin if it is set.
func (tx *Tx) disableInterruptPin(pin uint8, port Port) error {
	en, err := tx.read(port.reg(GPINTENA))
	if err != nil || en&(1<<pin) == 0 {
		return err
	}
	return tx.write(port.reg(GPINTENA), setBit(en, pin, false))
}

// IntFlag reads INTF of port: the pins that caused the pending interrupt.
func (tx *Tx) IntFlag(port Port) (uint8, error) {
	if port > PortB {
		return 0, ErrInvalidPort
	}
	return tx.read(port.reg(INTFA))
}

// IntCap reads INTCAP of port: the port levels captured when the interrupt
// fired. Reading it clears the interrupt.
func (tx *Tx) IntCap(port Port) (uint8, error) {
	if port > PortB {
		return 0, ErrInvalidPort
	}
	return tx.read(port.reg(INTCAPA))
}

// SetInterruptPinPolarity selects the active level of the INT outputs.
func (tx *Tx) SetInterruptPinPolarity(l gpio.Level) error {
	return tx.updateIOCON(ioconIntPol, l == gpio.High)
}

// SetInterruptOpenDrain configures the INT outputs as open-drain, which
// overrides the polarity setting.
func (tx *Tx) SetInterruptOpenDrain(on bool) error {
	return tx.updateIOCON(ioconODR, on)
}

// SetInterruptMirror ORs INTA and INTB so either pin reports both ports.
func (tx *Tx) SetInterruptMirror(on bool) error {
	return tx.updateIOCON(ioconMirror, on)
}

// updateIOCON read-modify-writes the bits of mask in IOCONA then IOCONB.
func (tx *Tx) updateIOCON(mask uint8, on bool) error {
	for _, reg := range []uint8{IOCONA, IOCONB} {
		v, err := tx.read(reg)
		if err != nil {
			return err
		}
		if on {
			v |= mask
		} else {
			v &^= mask
		}
		if err := tx.write(reg, v); err != nil {
			return err
		}
	}
	return nil
}

// SetInterruptOnChangePin runs the Tx operation in its own transaction.
func (d *Dev) SetInterruptOnChangePin(pin uint8, port Port) error {
	return d.Batch(func(tx *Tx) error { return tx.SetInterruptOnChangePin(pin, port) })
}

// SetInterruptOnDefValDevPin runs the Tx operation in its own transaction.
func (d *Dev) SetInterruptOnDefValDevPin(pin uint8, port Port, l gpio.Level) error {
	return d.Batch(func(tx *Tx) error { return tx.SetInterruptOnDefValDevPin(pin, port, l) })
}

// SetInterruptOnChangePort runs the Tx operation in its own transaction.
func (d *Dev) SetInterruptOnChangePort(mask uint8, port Port) error {
	return d.Batch(func(tx *Tx) error { return tx.SetInterruptOnChangePort(mask, port) })
}

// SetInterruptOnDefValDevPort runs the Tx operation in its own transaction.
func (d *Dev) SetInterruptOnDefValDevPort(mask uint8, port Port, defval uint8) error {
	return d.Batch(func(tx *Tx) error { return tx.SetInterruptOnDefValDevPort(mask, port, defval) })
}

// DeleteAllInterruptsOnPort clears GPINTEN of port.
func (d *Dev) DeleteAllInterruptsOnPort(port Port) error {
	return d.Batch(func(tx *Tx) error { return tx.DeleteAllInterruptsOnPort(port) })
}

// IntFlag reads INTF of port.
func (d *Dev) IntFlag(port Port) (v uint8, err error) {
	err = d.Batch(func(tx *Tx) error {
		v, err = tx.IntFlag(port)
		return err
	})
	return v, err
}

// IntCap reads INTCAP of port, clearing the interrupt.
func (d *Dev) IntCap(port Port) (v uint8, err error) {
	err = d.Batch(func(tx *Tx) error {
		v, err = tx.IntCap(port)
		return err
	})
	return v, err
}

// SetInterruptPinPolarity selects the active level of the INT outputs.
func (d *Dev) SetInterruptPinPolarity(l gpio.Level) error {
	return d.Batch(func(tx *Tx) error { return tx.SetInterruptPinPolarity(l) })
}

// SetInterruptOpenDrain configures the INT outputs as open-drain.
func (d *Dev) SetInterruptOpenDrain(on bool) error {
	return d.Batch(func(tx *Tx) error { return tx.SetInterruptOpenDrain(on) })
}

// SetInterruptMirror ORs INTA and INTB.
func (d *Dev) SetInterruptMirror(on bool) error {
	return d.Batch(func(tx *Tx) error { return tx.SetInterruptMirror(on) })
}

// WaitForInterrupt blocks until Opts.IntPin sees an edge or timeout expires,
// then reads INTF and INTCAP of port. Reading INTCAP clears the interrupt.
//
// flags is zero on timeout, or when the interrupt came from the other port.
// A negative timeout waits forever.
func (d *Dev) WaitForInterrupt(port Port, timeout time.Duration) (flags, captured uint8, err error) {
	if d.opts.IntPin == nil {
		return 0, 0, ErrNoIntPin
	}
	if port > PortB {
		return 0, 0, ErrInvalidPort
	}
	if !d.opts.IntPin.WaitForEdge(timeout) {
		return 0, 0, nil
	}
	err = d.Batch(func(tx *Tx) error {
		if flags, err = tx.IntFlag(port); err != nil {
			return err
		}
		captured, err = tx.IntCap(port)
		return err
	})
	return flags, captured, err
}
