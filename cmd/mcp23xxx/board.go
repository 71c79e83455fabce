// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/GermanBionicSystems/gpioexp/mcp23xxx"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/gpio"
)

// Board describes how the pins of a chip are wired on a board. It is loaded
// from a YAML file by the setup command:
//
//	interrupts:
//	  mirror: true
//	pins:
//	  - pin: A0
//	    mode: out
//	    level: high
//	  - pin: B3
//	    mode: in-pullup
//	    interrupt: change
type Board struct {
	Interrupts struct {
		Mirror     bool `yaml:"mirror"`
		OpenDrain  bool `yaml:"open_drain"`
		ActiveHigh bool `yaml:"active_high"`
	} `yaml:"interrupts"`
	Pins []PinConfig `yaml:"pins"`
}

// PinConfig is the setup of one pin.
type PinConfig struct {
	Pin   string `yaml:"pin"`
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
	// Inverted sets IPOL for the pin.
	Inverted bool `yaml:"inverted"`
	// Interrupt is one of "", "change", "defval-low" or "defval-high".
	Interrupt string `yaml:"interrupt"`
}

// pinStep is a validated PinConfig.
type pinStep struct {
	port      mcp23xxx.Port
	pin       uint8
	mode      mcp23xxx.Mode
	level     gpio.Level
	inverted  bool
	interrupt string
}

func loadBoard(path string) (*Board, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := decodeBoard(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

func decodeBoard(r io.Reader) (*Board, error) {
	b := &Board{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(b); err != nil && err != io.EOF {
		return nil, err
	}
	return b, nil
}

// resolve validates every pin entry without touching the chip.
func (b *Board) resolve() ([]pinStep, error) {
	seen := map[string]bool{}
	steps := make([]pinStep, 0, len(b.Pins))
	for i, pc := range b.Pins {
		port, pin, err := parsePin(pc.Pin)
		if err != nil {
			return nil, fmt.Errorf("pins[%d]: %w", i, err)
		}
		name := port.String() + strconv.Itoa(int(pin))
		if seen[name] {
			return nil, fmt.Errorf("pins[%d]: %s configured twice", i, name)
		}
		seen[name] = true
		s := pinStep{port: port, pin: pin, inverted: pc.Inverted, interrupt: pc.Interrupt}
		if s.mode, err = parseMode(pc.Mode); err != nil {
			return nil, fmt.Errorf("pins[%d]: %w", i, err)
		}
		if pc.Level != "" {
			if s.mode != mcp23xxx.Output {
				return nil, fmt.Errorf("pins[%d]: level set on an input", i)
			}
			if s.level, err = parseLevel(pc.Level); err != nil {
				return nil, fmt.Errorf("pins[%d]: %w", i, err)
			}
		}
		switch pc.Interrupt {
		case "":
		case "change", "defval-low", "defval-high":
			if s.mode == mcp23xxx.Output {
				return nil, fmt.Errorf("pins[%d]: interrupt on an output", i)
			}
		default:
			return nil, fmt.Errorf("pins[%d]: unknown interrupt %q", i, pc.Interrupt)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// applyBoard configures the chip in a single bus transaction.
func applyBoard(d *mcp23xxx.Dev, b *Board, steps []pinStep) error {
	return d.Batch(func(tx *mcp23xxx.Tx) error {
		if err := tx.SetInterruptMirror(b.Interrupts.Mirror); err != nil {
			return err
		}
		if err := tx.SetInterruptOpenDrain(b.Interrupts.OpenDrain); err != nil {
			return err
		}
		pol := gpio.Low
		if b.Interrupts.ActiveHigh {
			pol = gpio.High
		}
		if err := tx.SetInterruptPinPolarity(pol); err != nil {
			return err
		}
		for _, s := range steps {
			var err error
			if s.mode == mcp23xxx.Output {
				err = tx.SetPinX(s.pin, s.port, s.mode, s.level)
			} else {
				err = tx.SetPinMode(s.pin, s.port, s.mode)
			}
			if err != nil {
				return err
			}
			if err := tx.SetPinPolarity(s.pin, s.port, s.inverted); err != nil {
				return err
			}
			switch s.interrupt {
			case "change":
				err = tx.SetInterruptOnChangePin(s.pin, s.port)
			case "defval-low":
				err = tx.SetInterruptOnDefValDevPin(s.pin, s.port, gpio.Low)
			case "defval-high":
				err = tx.SetInterruptOnDefValDevPin(s.pin, s.port, gpio.High)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// parsePort accepts "A" or "B", case insensitive.
func parsePort(s string) (mcp23xxx.Port, error) {
	switch strings.ToUpper(s) {
	case "A":
		return mcp23xxx.PortA, nil
	case "B":
		return mcp23xxx.PortB, nil
	}
	return 0, fmt.Errorf("invalid port %q", s)
}

// parsePin accepts a port letter followed by the pin index, like "A3" or "b7".
func parsePin(s string) (mcp23xxx.Port, uint8, error) {
	if len(s) != 2 {
		return 0, 0, fmt.Errorf("invalid pin %q", s)
	}
	port, err := parsePort(s[:1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid pin %q", s)
	}
	if s[1] < '0' || s[1] > '7' {
		return 0, 0, fmt.Errorf("invalid pin %q", s)
	}
	return port, s[1] - '0', nil
}

func parseMode(s string) (mcp23xxx.Mode, error) {
	switch strings.ToLower(s) {
	case "out", "output":
		return mcp23xxx.Output, nil
	case "in", "input", "":
		return mcp23xxx.Input, nil
	case "in-pullup", "input-pullup":
		return mcp23xxx.InputPullUp, nil
	}
	return 0, fmt.Errorf("invalid mode %q", s)
}

func parseLevel(s string) (gpio.Level, error) {
	switch strings.ToLower(s) {
	case "high", "1", "on":
		return gpio.High, nil
	case "low", "0", "off":
		return gpio.Low, nil
	}
	return gpio.Low, fmt.Errorf("invalid level %q", s)
}

// parseByte accepts decimal, 0x hexadecimal and 0b binary values.
func parseByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return uint8(v), nil
}
