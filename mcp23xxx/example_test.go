// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp23xxx_test

import (
	"fmt"
	"log"
	"time"

	"github.com/GermanBionicSystems/gpioexp/mcp23xxx"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	// Open default SPI port.
	port, err := spireg.Open("")
	if err != nil {
		log.Fatalf("failed to open SPI: %v", err)
	}
	defer port.Close()

	// Chip select driven by a host GPIO.
	cs := gpioreg.ByName("GPIO8")
	if cs == nil {
		log.Fatal("no chip select pin")
	}

	dev, err := mcp23xxx.NewSPI(port, cs, nil)
	if err != nil {
		log.Fatalln(err)
	}
	defer dev.Close()

	// Port A drives LEDs, port B reads buttons with pull-ups.
	if err := dev.SetPortMode(0xFF, mcp23xxx.PortA); err != nil {
		log.Fatalln(err)
	}
	if err := dev.SetPortModePullUp(0x00, mcp23xxx.PortB); err != nil {
		log.Fatalln(err)
	}
	for i := uint8(0); i < 8; i++ {
		if err := dev.SetPin(i, mcp23xxx.PortA, gpio.High); err != nil {
			log.Fatalln(err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	buttons, err := dev.GetPort(mcp23xxx.PortB)
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Printf("buttons: %08b\n", buttons)
}

func ExampleDev_Batch() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	port, err := spireg.Open("")
	if err != nil {
		log.Fatal(err)
	}
	defer port.Close()
	dev, err := mcp23xxx.NewSPI(port, nil, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer dev.Close()

	// Configure both ports without another user of the bus interleaving.
	err = dev.Batch(func(tx *mcp23xxx.Tx) error {
		if err := tx.SetPortX(0xFF, 0x00, mcp23xxx.PortA); err != nil {
			return err
		}
		return tx.SetInterruptOnChangePort(0xFF, mcp23xxx.PortB)
	})
	if err != nil {
		log.Fatal(err)
	}
}
