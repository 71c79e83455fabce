// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpioexp is a container for GPIO expander drivers.
//
// The driver lives in the mcp23xxx sub-package; cmd/mcp23xxx is a command
// line tool to poke at a chip wired to a host SPI port.
package gpioexp
