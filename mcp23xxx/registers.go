// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23xxx

import (
	"errors"

	"periph.io/x/conn/v3/gpio"
)

// Register addresses with IOCON.BANK=0. Each port B register directly follows
// its port A counterpart.
const (
	IODIRA   uint8 = 0x00 // direction, 1 = input
	IODIRB   uint8 = 0x01
	IPOLA    uint8 = 0x02 // input polarity inversion
	IPOLB    uint8 = 0x03
	GPINTENA uint8 = 0x04 // interrupt-on-change enable
	GPINTENB uint8 = 0x05
	DEFVALA  uint8 = 0x06 // default compare value
	DEFVALB  uint8 = 0x07
	INTCONA  uint8 = 0x08 // interrupt control, 1 = compare against DEFVAL
	INTCONB  uint8 = 0x09
	IOCONA   uint8 = 0x0A // configuration
	IOCONB   uint8 = 0x0B
	GPPUA    uint8 = 0x0C // pull-up enable
	GPPUB    uint8 = 0x0D
	INTFA    uint8 = 0x0E // interrupt flags, read only
	INTFB    uint8 = 0x0F
	INTCAPA  uint8 = 0x10 // interrupt capture, read only
	INTCAPB  uint8 = 0x11
	GPIOA    uint8 = 0x12 // port level
	GPIOB    uint8 = 0x13
	OLATA    uint8 = 0x14 // output latch
	OLATB    uint8 = 0x15

	registerCount = 0x16
)

// IOCON bits.
const (
	ioconIntPol uint8 = 1 << 1 // INT output active-high
	ioconODR    uint8 = 1 << 2 // INT output open-drain
	ioconHAEN   uint8 = 1 << 3 // hardware address enable
	ioconMirror uint8 = 1 << 6 // INTA and INTB are OR'ed
	ioconBank   uint8 = 1 << 7 // split register map, unsupported
)

// Opcode is 0b0100 A2 A1 A0 R/W.
const (
	opcodeWrite uint8 = 0x40
	opcodeRead  uint8 = 0x41
)

// selfTestPattern is written to INTCONA and read back by Init.
const selfTestPattern uint8 = 0b10101010

var (
	// ErrInvalidPort is returned when a Port other than PortA or PortB is used.
	ErrInvalidPort = errors.New("mcp23xxx: invalid port")
	// ErrInvalidPin is returned for a pin index outside 0-7.
	ErrInvalidPin = errors.New("mcp23xxx: invalid pin")
	// ErrInvalidMode is returned for an unknown Mode.
	ErrInvalidMode = errors.New("mcp23xxx: invalid pin mode")
	// ErrInvalidRegister is returned for a register address above OLATB.
	ErrInvalidRegister = errors.New("mcp23xxx: invalid register")
	// ErrBankMode is returned when writing IOCON with BANK set.
	ErrBankMode = errors.New("mcp23xxx: IOCON.BANK=1 is not supported")
)

// Port selects one of the two 8 bit banks of the chip.
type Port uint8

const (
	PortA Port = 0
	PortB Port = 1
)

func (p Port) String() string {
	switch p {
	case PortA:
		return "A"
	case PortB:
		return "B"
	default:
		return "?"
	}
}

// reg returns the address of this port's copy of the port A register a.
func (p Port) reg(a uint8) uint8 {
	return a + uint8(p)
}

// Mode is the direction and pull-up configuration of a single pin.
type Mode uint8

const (
	Output      Mode = iota // IODIR bit cleared, pull-up off
	Input                   // IODIR bit set, pull-up off
	InputPullUp             // IODIR bit set, pull-up on
)

func (m Mode) String() string {
	switch m {
	case Output:
		return "Output"
	case Input:
		return "Input"
	case InputPullUp:
		return "InputPullUp"
	default:
		return "Mode(?)"
	}
}

func checkPin(port Port, pin uint8) error {
	if port > PortB {
		return ErrInvalidPort
	}
	if pin > 7 {
		return ErrInvalidPin
	}
	return nil
}

// shadow holds the registers whose content the driver decides: IODIR and
// GPIO of both ports, indexed by Port. Both start zeroed and are reset to
// zero by a successful Init.
type shadow struct {
	dir [2]uint8
	out [2]uint8
}

// The helpers below are pure: they compute the next register content and
// leave persisting it, and committing it to the shadow, to the caller.

func setBit(v, pin uint8, on bool) uint8 {
	if on {
		return v | 1<<pin
	}
	return v &^ (1 << pin)
}

// pinDirection returns the IODIR and GPPU values that configure pin for mode.
// Both Input and InputPullUp set the IODIR bit.
func pinDirection(dir, pullup, pin uint8, mode Mode) (uint8, uint8) {
	switch mode {
	case Output:
		return setBit(dir, pin, false), setBit(pullup, pin, false)
	case Input:
		return setBit(dir, pin, true), setBit(pullup, pin, false)
	case InputPullUp:
		return setBit(dir, pin, true), setBit(pullup, pin, true)
	}
	return dir, pullup
}

// portDirection converts an output mask (bit set = output) to the IODIR
// value (bit set = input), the opposite convention of pinDirection.
func portDirection(mask uint8) uint8 {
	return ^mask
}

func pinLevel(out, pin uint8, l gpio.Level) uint8 {
	return setBit(out, pin, l == gpio.High)
}

func togglePinLevel(out, pin uint8) uint8 {
	return out ^ (1 << pin)
}

func allLevels(l gpio.Level) uint8 {
	if l == gpio.High {
		return 0xFF
	}
	return 0x00
}
