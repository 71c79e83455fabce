// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mcp23xxx provides a driver for the SPI variants of the MCP23X17
// family of 16 bit GPIO expanders (MCP23S17, MCP23S18).
//
// The driver keeps a shadow copy of the direction (IODIR) and output (GPIO)
// registers of both ports. Per pin operations modify the shadow and push the
// whole byte, so the chip is never read before a partial update of those
// registers. Registers the driver does not own (pull-ups, interrupt
// configuration, inputs, interrupt flags) are read fresh each time.
//
// The shadow is only correct as long as the Dev is the only writer of the
// chip. New resets the chip and zeroes the shadow; with Opts.NoInit it leaves
// the chip alone and loads the shadow from IODIR and OLAT instead, which lets
// short lived processes pick up where the previous one stopped.
//
// # Direction bit conventions
//
// At the register level an IODIR bit set to 1 means input. Per pin calls take
// a Mode, but SetPortMode takes an output mask: a bit set in the mask makes
// the pin an output, and the value stored in IODIR is its complement.
//
// # Transactions
//
// Every Dev method runs inside its own bus transaction. Use Dev.Batch to
// run several operations inside a single transaction; the Tx handle passed to
// the callback exposes the same operations without opening transactions of
// its own. Dev methods must not be called from inside a Batch callback, and
// a Tx used after its Batch returned fails with ErrTxClosed.
//
// # Datasheet
//
// https://ww1.microchip.com/downloads/en/DeviceDoc/20001952C.pdf
package mcp23xxx
