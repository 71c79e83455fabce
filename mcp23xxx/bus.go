// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23xxx

import (
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// Bus is the connection a Dev talks through.
//
// Begin and End delimit a bus transaction. While a transaction is open the
// connection settings stay fixed and no other user of the Bus may interleave
// transfers. Tx is only called by the Dev between Begin and End.
type Bus interface {
	conn.Conn
	Begin() error
	End() error
}

// NewBus returns a Bus serializing transactions on c with a mutex.
//
// Several Dev sharing one SPI connection, each with its own chip select pin,
// can share the returned Bus.
func NewBus(c conn.Conn) Bus {
	return &lockedBus{Conn: c}
}

type lockedBus struct {
	conn.Conn
	mu sync.Mutex
}

func (b *lockedBus) Begin() error {
	b.mu.Lock()
	return nil
}

func (b *lockedBus) End() error {
	b.mu.Unlock()
	return nil
}

// transport frames register accesses for the chip. None of its methods open
// a transaction; wrap them with transaction.
type transport struct {
	bus Bus
	// cs is asserted low around each transfer. nil when the SPI port drives
	// chip select itself.
	cs gpio.PinOut
	// addr is the A2..A0 hardware address placed in the opcode. It stays 0
	// until IOCON.HAEN is enabled.
	addr uint8
}

func (t *transport) transaction(fn func() error) (err error) {
	if err = t.bus.Begin(); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, t.bus.End())
	}()
	return fn()
}

func (t *transport) opcode(read bool) uint8 {
	if read {
		return opcodeRead | t.addr<<1
	}
	return opcodeWrite | t.addr<<1
}

func (t *transport) tx(w, r []byte) (err error) {
	if t.cs != nil {
		if err = t.cs.Out(gpio.Low); err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, t.cs.Out(gpio.High))
		}()
	}
	return t.bus.Tx(w, r)
}

// write sets a single register.
func (t *transport) write(reg, v uint8) error {
	return t.tx([]byte{t.opcode(false), reg, v}, nil)
}

// writePair sets reg and reg+1 in one transfer, relying on the address
// pointer auto-increment. Both bytes are latched under a single chip select.
func (t *transport) writePair(reg, a, b uint8) error {
	return t.tx([]byte{t.opcode(false), reg, a, b}, nil)
}

// writeSeq writes vals to consecutive registers starting at reg.
func (t *transport) writeSeq(reg uint8, vals []byte) error {
	w := make([]byte, 2+len(vals))
	w[0] = t.opcode(false)
	w[1] = reg
	copy(w[2:], vals)
	return t.tx(w, nil)
}

// read returns the content of reg. The third byte of the frame is a dummy
// clocked out while the chip shifts the register value back.
func (t *transport) read(reg uint8) (uint8, error) {
	v, err := t.readSeq(reg, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// readSeq reads n consecutive registers starting at reg.
func (t *transport) readSeq(reg uint8, n int) ([]byte, error) {
	w := make([]byte, 2+n)
	w[0] = t.opcode(true)
	w[1] = reg
	r := make([]byte, len(w))
	if err := t.tx(w, r); err != nil {
		return nil, err
	}
	return r[2:], nil
}
