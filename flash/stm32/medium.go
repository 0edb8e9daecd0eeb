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

	"github.com/juju/errors"

	"github.com/mongoose-os/iap/flash/common"
)

// Medium accesses on-chip flash through the bootloader.
// Page numbers are relative to the geometry base, as the bootloader expects.
type Medium struct {
	c    *Client
	geom common.Geometry
}

func NewMedium(c *Client, g common.Geometry) *Medium {
	return &Medium{c: c, geom: g}
}

func (m *Medium) Geometry() common.Geometry {
	return m.geom
}

func (m *Medium) ReadWords(ctx context.Context, addr uint32, count int) ([]uint32, error) {
	data, err := m.c.ReadMemory(ctx, addr, count*common.WordSize)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return common.WordsFromBytes(data), nil
}

func (m *Medium) ErasePage(ctx context.Context, page int) error {
	return errors.Trace(m.c.ErasePages(ctx, []int{page}))
}

func (m *Medium) ProgramWords(ctx context.Context, addr uint32, words []uint32) error {
	return errors.Trace(m.c.WriteMemory(ctx, addr, common.BytesFromWords(words)))
}
