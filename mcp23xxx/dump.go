// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23xxx

import (
	"fmt"
	"strings"
)

// RegisterNames maps each register address to its datasheet name.
var RegisterNames = [registerCount]string{
	"IODIRA", "IODIRB", "IPOLA", "IPOLB", "GPINTENA", "GPINTENB",
	"DEFVALA", "DEFVALB", "INTCONA", "INTCONB", "IOCONA", "IOCONB",
	"GPPUA", "GPPUB", "INTFA", "INTFB", "INTCAPA", "INTCAPB",
	"GPIOA", "GPIOB", "OLATA", "OLATB",
}

// Registers is a snapshot of every register, indexed by address.
type Registers [registerCount]uint8

// Registers reads all registers in a single auto-increment transfer.
//
// Reading INTCAP clears a pending interrupt.
func (d *Dev) Registers() (regs Registers, err error) {
	err = d.Batch(func(tx *Tx) error {
		v, err := tx.readSeq(IODIRA, registerCount)
		if err != nil {
			return err
		}
		copy(regs[:], v)
		return nil
	})
	return regs, err
}

// String renders one line per register. IODIR is shown inverted so that a
// set bit reads as an output, like the port level mode masks.
func (r Registers) String() string {
	var b strings.Builder
	for reg, v := range r {
		if uint8(reg) == IODIRA || uint8(reg) == IODIRB {
			v = ^v
		}
		fmt.Fprintf(&b, "%-8s: 0x%02X | 0b%08b\n", RegisterNames[reg], v, v)
	}
	return b.String()
}
