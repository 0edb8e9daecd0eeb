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
	"context"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// DefaultScratchAddr is above the SRAM used by the bootloader itself.
const DefaultScratchAddr = 0x20000200

// Transfer starts an image through the bootloader Go command.
// Go takes MSP and PC from a vector pair, so the pair is assembled in
// scratch SRAM first.
type Transfer struct {
	c       *Client
	scratch uint32
	sp      uint32
	spSet   bool
}

func NewTransfer(c *Client, scratch uint32) *Transfer {
	if scratch == 0 {
		scratch = DefaultScratchAddr
	}
	return &Transfer{c: c, scratch: scratch}
}

func (t *Transfer) SetStackPointer(ctx context.Context, sp uint32) error {
	t.sp = sp
	t.spSet = true
	return nil
}

func (t *Transfer) Jump(ctx context.Context, entry uint32) error {
	if !t.spSet {
		return errors.Errorf("stack pointer is not set")
	}
	vectors := []byte{
		byte(t.sp), byte(t.sp >> 8), byte(t.sp >> 16), byte(t.sp >> 24),
		byte(entry), byte(entry >> 8), byte(entry >> 16), byte(entry >> 24),
	}
	glog.V(1).Infof("vectors (SP 0x%08x, PC 0x%08x) -> 0x%08x", t.sp, entry, t.scratch)
	if err := t.c.WriteMemory(ctx, t.scratch, vectors); err != nil {
		return errors.Annotatef(err, "failed to write vectors")
	}
	return errors.Trace(t.c.Go(ctx, t.scratch))
}
