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
package image

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	uf2BlockSize = 512
	uf2Magic0    = 0x0a324655
	uf2Magic1    = 0x9e5d5157
	uf2Magic2    = 0x0ab16f30

	uf2NotMainFlash    = 0x00000001
	uf2FileContainer   = 0x00001000
	uf2FamilyIDPresent = 0x00002000
)

type uf2Header struct {
	Magic0 uint32
	Magic1 uint32
	Flags  uint32
	Addr   uint32
	Len    uint32
	Seq    uint32
	Total  uint32
	Family uint32
}

// IsUF2 returns true if data starts with a UF2 block.
func IsUF2(data []byte) bool {
	return len(data) >= 8 &&
		binary.LittleEndian.Uint32(data[0:]) == uf2Magic0 &&
		binary.LittleEndian.Uint32(data[4:]) == uf2Magic1
}

// ParseUF2 extracts main flash payload from UF2 blocks.
// If family is not zero, blocks for other families are skipped.
func ParseUF2(data []byte, family uint32, fill byte, maxGap int) ([]*Segment, error) {
	if len(data)%uf2BlockSize != 0 {
		return nil, errors.Errorf("UF2 size %d is not a multiple of %d", len(data), uf2BlockSize)
	}
	var blocks []*Segment
	for i := 0; i < len(data)/uf2BlockSize; i++ {
		b := data[i*uf2BlockSize : (i+1)*uf2BlockSize]
		var h uf2Header
		binary.Read(bytes.NewReader(b), binary.LittleEndian, &h)
		if h.Magic0 != uf2Magic0 || h.Magic1 != uf2Magic1 ||
			binary.LittleEndian.Uint32(b[uf2BlockSize-4:]) != uf2Magic2 {
			return nil, errors.Errorf("block %d: invalid magic", i)
		}
		if h.Flags&(uf2NotMainFlash|uf2FileContainer) != 0 {
			glog.V(2).Infof("block %d: skipped (flags 0x%x)", i, h.Flags)
			continue
		}
		if family != 0 && h.Flags&uf2FamilyIDPresent != 0 && h.Family != family {
			glog.V(2).Infof("block %d: skipped (family 0x%08x)", i, h.Family)
			continue
		}
		if h.Len > 476 {
			return nil, errors.Errorf("block %d: invalid payload size %d", i, h.Len)
		}
		blocks = append(blocks, &Segment{Addr: h.Addr, Data: b[32 : 32+h.Len]})
	}
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Addr < blocks[j].Addr })
	var segs []*Segment
	var cur *Segment
	for _, b := range blocks {
		switch {
		case cur == nil:
		case b.Addr < cur.End():
			return nil, errors.Errorf("overlapping blocks @ 0x%08x", b.Addr)
		case b.Addr == cur.End():
			cur.Data = append(cur.Data, b.Data...)
			continue
		case int(b.Addr-cur.End()) < maxGap:
			cur.Data = append(cur.Data, bytes.Repeat([]byte{fill}, int(b.Addr-cur.End()))...)
			cur.Data = append(cur.Data, b.Data...)
			continue
		default:
			segs = append(segs, cur)
		}
		cur = &Segment{Addr: b.Addr, Data: append([]byte(nil), b.Data...)}
	}
	if cur != nil {
		segs = append(segs, cur)
	}
	return segs, nil
}
