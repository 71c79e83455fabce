// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23xxx

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi/spitest"
)

// initOps is the transfer sequence of Init with hardware addressing off.
var initOps = []conntest.IO{
	// soft reset: port A, then port B, all input without pull-up
	{W: []byte{0x40, IODIRA, 0xFF}},
	{W: []byte{0x40, GPPUA, 0x00}},
	{W: []byte{0x40, IODIRB, 0xFF}},
	{W: []byte{0x40, GPPUB, 0x00}},
	// zeros from IPOLA to GPIOB
	{W: append([]byte{0x40, IPOLA}, make([]byte, 18)...)},
	// hardware addressing off
	{W: []byte{0x40, IOCONA, 0x00}},
	{W: []byte{0x40, IOCONB, 0x00}},
	// self-test
	{W: []byte{0x40, INTCONA, 0xAA}},
	{W: []byte{0x41, INTCONA, 0x00}, R: []byte{0x00, 0x00, 0xAA}},
	{W: []byte{0x40, INTCONA, 0x00}},
}

func TestNewSPI(t *testing.T) {
	pb := &spitest.Playback{Playback: conntest.Playback{Ops: initOps, DontPanic: true}}
	cs := &csPin{Pin: gpiotest.Pin{N: "CS", L: gpio.Low}}
	d, err := NewSPI(pb, cs, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
	// Released first, then asserted around each of the transfers.
	want := []gpio.Level{gpio.High}
	for range initOps {
		want = append(want, gpio.Low, gpio.High)
	}
	if diff := cmp.Diff(want, cs.levels); diff != "" {
		t.Errorf("chip select sequence (-want +got):\n%s", diff)
	}
	if d.String() != "MCP23S17_20" {
		t.Errorf("String() = %q", d.String())
	}
}

func TestNewSPI_selfTestFailure(t *testing.T) {
	ops := append([]conntest.IO(nil), initOps[:8]...)
	ops = append(ops, conntest.IO{W: []byte{0x41, INTCONA, 0x00}, R: []byte{0xFF, 0xFF, 0xFF}})
	pb := &spitest.Playback{Playback: conntest.Playback{Ops: ops, DontPanic: true}}
	_, err := NewSPI(pb, nil, nil)
	if !errors.Is(err, ErrSelfTest) {
		t.Fatalf("want ErrSelfTest, got %v", err)
	}
}

func TestInit(t *testing.T) {
	f := newFakeChip()
	f.mem[GPPUA] = 0xFF
	f.mem[OLATB] = 0x42
	d, err := New(f, nil, &Opts{Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	for _, p := range []Port{PortA, PortB} {
		if d.Direction(p) != 0 || d.Output(p) != 0 {
			t.Errorf("port %s shadow dir %#02x out %#02x, want zero", p, d.Direction(p), d.Output(p))
		}
	}
	if f.mem[INTCONA] != 0 {
		t.Errorf("INTCONA = %#02x after self-test", f.mem[INTCONA])
	}
	if f.mem[IODIRA] != 0xFF || f.mem[IODIRB] != 0xFF || f.mem[GPPUA] != 0 {
		t.Errorf("soft reset: IODIR %#02x/%#02x GPPUA %#02x", f.mem[IODIRA], f.mem[IODIRB], f.mem[GPPUA])
	}
	// OLAT is past the zeroed range but follows the GPIO writes.
	if f.mem[OLATB] != 0 {
		t.Errorf("OLATB = %#02x", f.mem[OLATB])
	}
	if f.begins != 1 || f.outside != 0 || f.open != 0 {
		t.Errorf("Init should use one transaction: begins %d outside %d open %d", f.begins, f.outside, f.open)
	}
}

func TestInit_failureKeepsShadow(t *testing.T) {
	d, f := newTestDev(t)
	if err := d.SetPortX(0xFF, 0x3C, PortA); err != nil {
		t.Fatal(err)
	}
	if err := d.SetPorts(0x3C, 0xC3); err != nil {
		t.Fatal(err)
	}
	f.stuck[INTCONA] = true
	err := d.Init()
	if !errors.Is(err, ErrSelfTest) {
		t.Fatalf("want ErrSelfTest, got %v", err)
	}
	if d.Output(PortA) != 0x3C || d.Output(PortB) != 0xC3 {
		t.Errorf("output shadow changed on failure: %#02x %#02x", d.Output(PortA), d.Output(PortB))
	}
	if d.Direction(PortA) != 0x00 {
		t.Errorf("direction shadow changed on failure: %#02x", d.Direction(PortA))
	}
	if f.open != 0 {
		t.Error("transaction left open")
	}
}

func TestInit_busFault(t *testing.T) {
	f := newFakeChip()
	f.failAfter = 3
	if _, err := New(f, nil, nil); err == nil {
		t.Fatal("expected an error")
	}
	if f.open != 0 {
		t.Error("transaction left open")
	}
}

func TestInit_hardwareAddress(t *testing.T) {
	f := newFakeChip()
	f.addr = 5
	d, err := New(f, nil, &Opts{HardwareAddress: true, Addr: 5})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if f.mem[IOCONA]&ioconHAEN == 0 {
		t.Fatal("HAEN not enabled")
	}
	if d.String() != "MCP23S17_25" {
		t.Errorf("String() = %q", d.String())
	}
	f.reset()
	if err := d.SetPin(0, PortA, gpio.High); err != nil {
		t.Fatal(err)
	}
	if got := f.ops[0].W[0]; got != 0x40|5<<1 {
		t.Errorf("opcode %#02x", got)
	}
	if f.mem[GPIOA] != 0x01 {
		t.Errorf("GPIOA = %#02x", f.mem[GPIOA])
	}
}

func TestInit_resetPulse(t *testing.T) {
	reset := &csPin{Pin: gpiotest.Pin{N: "RESET"}}
	d, err := New(newFakeChip(), nil, &Opts{Reset: reset})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if diff := cmp.Diff([]gpio.Level{gpio.Low, gpio.High}, reset.levels); diff != "" {
		t.Errorf("reset sequence (-want +got):\n%s", diff)
	}
}

func TestNew_attach(t *testing.T) {
	f := newFakeChip()
	f.mem[IODIRA] = 0xF0
	f.mem[IODIRB] = 0x0F
	f.mem[OLATA] = 0x05
	f.mem[OLATB] = 0x80
	// Pin levels differ from the latch.
	f.mem[GPIOA] = 0x0F
	reset := &csPin{Pin: gpiotest.Pin{N: "RESET"}}
	d, err := New(f, nil, &Opts{NoInit: true, Reset: reset, Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if d.Direction(PortA) != 0xF0 || d.Direction(PortB) != 0x0F {
		t.Errorf("direction shadow %#02x %#02x", d.Direction(PortA), d.Direction(PortB))
	}
	if d.Output(PortA) != 0x05 || d.Output(PortB) != 0x80 {
		t.Errorf("output shadow %#02x %#02x", d.Output(PortA), d.Output(PortB))
	}
	if len(f.writes()) != 0 || len(reset.levels) != 0 {
		t.Errorf("attach changed the chip: %d writes, reset %v", len(f.writes()), reset.levels)
	}
	if f.begins != 1 || f.outside != 0 {
		t.Errorf("begins %d outside %d", f.begins, f.outside)
	}

	if err := d.SetPin(1, PortA, gpio.High); err != nil {
		t.Fatal(err)
	}
	if f.mem[GPIOA] != 0x07 || f.mem[IODIRA] != 0xF0 {
		t.Errorf("GPIOA %#02x IODIRA %#02x", f.mem[GPIOA], f.mem[IODIRA])
	}
}

func TestNew_attachHardwareAddress(t *testing.T) {
	f := newFakeChip()
	f.addr = 5
	f.mem[IOCONA] = ioconHAEN
	f.mem[IOCONB] = ioconHAEN
	f.mem[IODIRA] = 0x7F
	d, err := New(f, nil, &Opts{NoInit: true, HardwareAddress: true, Addr: 5})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if got := f.ops[0].W[0]; got != 0x41|5<<1 {
		t.Errorf("opcode %#02x", got)
	}
	if d.Direction(PortA) != 0x7F {
		t.Errorf("direction shadow %#02x", d.Direction(PortA))
	}
}

func TestNew_invalidOpts(t *testing.T) {
	for name, opts := range map[string]*Opts{
		"variant":  {Variant: "MCP23017"},
		"address":  {HardwareAddress: true, Addr: 8},
		"MCP23S18": {Variant: MCP23S18, HardwareAddress: true},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFakeChip()
			if _, err := New(f, nil, opts); err == nil {
				t.Fatal("expected an error")
			}
			if len(f.ops) != 0 {
				t.Error("bus used with invalid options")
			}
		})
	}
}

// Writing then reading back every register on a register memory returns the
// written value.
func TestRegisterRoundTrip(t *testing.T) {
	d, _ := newTestDev(t)
	for reg := uint8(0); reg < registerCount; reg++ {
		v := reg ^ 0x5A
		if err := d.WriteRegister(reg, v); err != nil {
			t.Fatal(err)
		}
		got, err := d.ReadRegister(reg)
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Errorf("%s: wrote %#02x read %#02x", RegisterNames[reg], v, got)
		}
	}
	if d.Direction(PortB) != IODIRB^0x5A || d.Output(PortA) != OLATA^0x5A {
		t.Error("raw IODIR/OLAT writes not reflected in the shadow")
	}
	if _, err := d.ReadRegister(registerCount); !errors.Is(err, ErrInvalidRegister) {
		t.Errorf("want ErrInvalidRegister, got %v", err)
	}
	if err := d.WriteRegister(0xFF, 0); !errors.Is(err, ErrInvalidRegister) {
		t.Errorf("want ErrInvalidRegister, got %v", err)
	}
}

func TestShadow_invalidPort(t *testing.T) {
	d, _ := newTestDev(t)
	if err := d.SetPortX(0x0F, 0x3C, PortA); err != nil {
		t.Fatal(err)
	}
	if d.Direction(PortA) != 0xF0 || d.Output(PortA) != 0x3C {
		t.Fatalf("shadow %#02x %#02x", d.Direction(PortA), d.Output(PortA))
	}
	for _, p := range []Port{2, 3, 0xFF} {
		if d.Direction(p) != 0 || d.Output(p) != 0 {
			t.Errorf("port %d: %#02x %#02x", p, d.Direction(p), d.Output(p))
		}
	}
}

func TestHalt(t *testing.T) {
	d, f := newTestDev(t)
	if err := d.SetPortModePullUp(0x0F, PortA); err != nil {
		t.Fatal(err)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if f.mem[IODIRA] != 0xFF || f.mem[IODIRB] != 0xFF || f.mem[GPPUA] != 0 {
		t.Errorf("Halt: IODIR %#02x/%#02x GPPUA %#02x", f.mem[IODIRA], f.mem[IODIRB], f.mem[GPPUA])
	}
}
