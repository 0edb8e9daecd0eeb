//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package devutil

import (
	"context"
	"io"

	"github.com/juju/errors"

	"github.com/mongoose-os/iap/cli/flags"
	"github.com/mongoose-os/iap/cli/ourutil"
	"github.com/mongoose-os/iap/flash/stm32"
)

// Bootloader is a ROM bootloader session on a serial port.
type Bootloader struct {
	*stm32.Client
	Port string
	c    io.Closer
}

func (b *Bootloader) Close() error {
	return b.c.Close()
}

// OpenBootloader opens the serial port given by flags and synchronizes with the bootloader.
func OpenBootloader(ctx context.Context) (*Bootloader, error) {
	port, err := GetPort()
	if err != nil {
		return nil, errors.Trace(err)
	}
	s, err := stm32.OpenSerial(&stm32.SerialOpts{
		Port:                 port,
		BaudRate:             *flags.BaudRate,
		ResetIntoBootloader:  *flags.ResetIntoBootloader,
		InvertedControlLines: *flags.InvertedControlLines,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	ctx, cancel := context.WithTimeout(ctx, *flags.Timeout*10)
	defer cancel()
	c, err := stm32.Connect(ctx, s, &stm32.ClientOpts{
		Timeout:      *flags.Timeout,
		EraseTimeout: *flags.EraseTimeout,
	})
	if err != nil {
		s.Close()
		return nil, errors.Annotatef(err, "no response from the bootloader on %s", port)
	}
	ourutil.Reportf("Bootloader %s on %s, PID 0x%03x (%s)", c.Version(), port, c.PID(), stm32.DeviceName(c.PID()))
	return &Bootloader{Client: c, Port: port, c: s}, nil
}
