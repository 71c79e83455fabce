// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23xxx

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap/zaptest"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// fakeChip is a register memory answering to the MCP23S17 SPI framing. It
// implements Bus and records every transfer.
type fakeChip struct {
	mem [registerCount]uint8
	// addr is the hardware address the chip answers to once HAEN is set.
	addr uint8
	// stuck registers ignore writes.
	stuck map[uint8]bool
	// failAfter makes Tx fail once that many transfers were done; 0 disables.
	failAfter int

	ops     []conntest.IO
	open    int
	begins  int
	outside int // transfers done outside a transaction
}

func newFakeChip() *fakeChip {
	f := &fakeChip{stuck: map[uint8]bool{}}
	f.mem[IODIRA] = 0xFF
	f.mem[IODIRB] = 0xFF
	return f
}

func (f *fakeChip) String() string      { return "fakeChip" }
func (f *fakeChip) Duplex() conn.Duplex { return conn.Full }

func (f *fakeChip) Begin() error {
	f.open++
	f.begins++
	return nil
}

func (f *fakeChip) End() error {
	f.open--
	return nil
}

// reset clears the transfer log.
func (f *fakeChip) reset() {
	f.ops = nil
	f.begins = 0
}

func (f *fakeChip) Tx(w, r []byte) error {
	if f.failAfter != 0 && len(f.ops) >= f.failAfter {
		return errors.New("fakeChip: bus fault")
	}
	f.ops = append(f.ops, conntest.IO{W: append([]byte(nil), w...)})
	if f.open == 0 {
		f.outside++
	}
	if len(w) < 3 {
		return fmt.Errorf("fakeChip: short frame %#v", w)
	}
	op, reg := w[0], w[1]
	if op&0xF0 != 0x40 {
		return fmt.Errorf("fakeChip: bad opcode %#02x", op)
	}
	if f.mem[IOCONA]&ioconHAEN != 0 && (op>>1)&7 != f.addr {
		// Not for us.
		return nil
	}
	if op&1 == 1 {
		if len(r) != len(w) {
			return fmt.Errorf("fakeChip: read needs %d bytes buffer, got %d", len(w), len(r))
		}
		for i := 2; i < len(w); i++ {
			r[i] = f.mem[(int(reg)+i-2)%registerCount]
		}
		return nil
	}
	for i, v := range w[2:] {
		a := uint8((int(reg) + i) % registerCount)
		if f.stuck[a] {
			continue
		}
		f.mem[a] = v
		switch a {
		case GPIOA, GPIOB:
			// Writing GPIO writes the output latch.
			f.mem[a+OLATA-GPIOA] = v
		case IOCONA, IOCONB:
			f.mem[IOCONA], f.mem[IOCONB] = v, v
		}
	}
	return nil
}

// writes returns the data part [reg, values...] of each write transfer.
func (f *fakeChip) writes() [][]byte {
	var out [][]byte
	for _, io := range f.ops {
		if io.W[0]&1 == 0 {
			out = append(out, io.W[1:])
		}
	}
	return out
}

// csPin records every level written to it.
type csPin struct {
	gpiotest.Pin
	levels []gpio.Level
}

func (p *csPin) Out(l gpio.Level) error {
	p.levels = append(p.levels, l)
	return p.Pin.Out(l)
}

// newTestDev returns an initialized Dev on a fresh fakeChip, with the
// transfer log cleared.
func newTestDev(t *testing.T) (*Dev, *fakeChip) {
	t.Helper()
	f := newFakeChip()
	d, err := New(f, nil, &Opts{Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = d.Close() })
	f.reset()
	return d, f
}

var _ Bus = &fakeChip{}
