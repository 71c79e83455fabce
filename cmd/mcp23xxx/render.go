// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/GermanBionicSystems/gpioexp/mcp23xxx"
	"github.com/maruel/ansi256"
)

var (
	bitSet   = color.NRGBA{0x00, 0xD0, 0x40, 0xFF}
	bitClear = color.NRGBA{0x30, 0x30, 0x30, 0xFF}
)

// renderRegisters writes one line per register with its value in hex and its
// bits as colored blocks, most significant bit first. IODIR is inverted so a
// lit block is an output.
func renderRegisters(w io.Writer, regs mcp23xxx.Registers, p *ansi256.Palette) error {
	var buf bytes.Buffer
	for reg, v := range regs {
		if uint8(reg) == mcp23xxx.IODIRA || uint8(reg) == mcp23xxx.IODIRB {
			v = ^v
		}
		fmt.Fprintf(&buf, "%-8s 0x%02X ", mcp23xxx.RegisterNames[reg], v)
		for bit := 7; bit >= 0; bit-- {
			c := bitClear
			if v&(1<<bit) != 0 {
				c = bitSet
			}
			_, _ = io.WriteString(&buf, p.Block(c))
		}
		_, _ = buf.WriteString("\033[0m\n")
	}
	_, err := buf.WriteTo(w)
	return err
}
