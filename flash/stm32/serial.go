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
package stm32

import (
	"time"

	"github.com/cesanta/go-serial/serial"
	"github.com/golang/glog"
	"github.com/juju/errors"
)

type SerialOpts struct {
	Port     string
	BaudRate uint
	// ResetIntoBootloader pulses reset (DTR) with BOOT0 (RTS) held high.
	ResetIntoBootloader  bool
	InvertedControlLines bool
}

const interCharacterTimeout = 100 * time.Millisecond

// OpenSerial opens the port in the 8E1 framing the bootloader requires.
func OpenSerial(opts *SerialOpts) (serial.Serial, error) {
	glog.Infof("Opening %s @ %d...", opts.Port, opts.BaudRate)
	oo := serial.OpenOptions{
		PortName:              opts.Port,
		BaudRate:              115200,
		DataBits:              8,
		ParityMode:            serial.PARITY_EVEN,
		StopBits:              1,
		InterCharacterTimeout: uint(interCharacterTimeout / time.Millisecond),
		MinimumReadSize:       0,
	}
	if opts.BaudRate != 0 {
		oo.BaudRate = opts.BaudRate
	}
	s, err := serial.Open(oo)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s", opts.Port)
	}
	if opts.ResetIntoBootloader {
		on, off := true, false
		if opts.InvertedControlLines {
			on, off = off, on
		}
		glog.V(1).Infof("resetting into bootloader")
		s.SetRTS(on)
		s.SetDTR(on)
		time.Sleep(50 * time.Millisecond)
		s.SetDTR(off)
		time.Sleep(100 * time.Millisecond)
	}
	s.Flush()
	return s, nil
}
