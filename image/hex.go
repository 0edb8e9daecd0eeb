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
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"

	"github.com/juju/errors"
)

// Segment is a contiguous run of data at an absolute address.
type Segment struct {
	Addr uint32
	Data []byte
}

func (s *Segment) End() uint32 {
	return s.Addr + uint32(len(s.Data))
}

const (
	hexData         = 0
	hexEOF          = 1
	hexExtSegAddr   = 2
	hexStartSegAddr = 3
	hexExtLinAddr   = 4
	hexStartLinAddr = 5
)

// ParseHex parses Intel HEX data. Gaps smaller than maxGap are filled with fill,
// larger gaps start a new segment. The second return value is the start address
// from a type 3 or 5 record, if any.
func ParseHex(data []byte, fill byte, maxGap int) ([]*Segment, uint32, error) {
	var segs []*Segment
	var cur *Segment
	var base, start uint32
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	eof := false
	for !eof && scanner.Scan() {
		lineNo++
		l := bytes.TrimSpace(scanner.Bytes())
		if len(l) == 0 {
			continue
		}
		rec, err := decodeHexRecord(l)
		if err != nil {
			return nil, 0, errors.Annotatef(err, "line %d", lineNo)
		}
		switch rec.typ {
		case hexData:
			addr := base + uint32(rec.offset)
			switch {
			case cur == nil:
				cur = &Segment{Addr: addr}
			case addr == cur.End():
			case addr > cur.End() && int(addr-cur.End()) < maxGap:
				cur.Data = append(cur.Data, bytes.Repeat([]byte{fill}, int(addr-cur.End()))...)
			default:
				segs = append(segs, cur)
				cur = &Segment{Addr: addr}
			}
			cur.Data = append(cur.Data, rec.data...)
		case hexEOF:
			eof = true
		case hexExtSegAddr, hexExtLinAddr:
			if len(rec.data) != 2 {
				return nil, 0, errors.Errorf("line %d: invalid extended address record", lineNo)
			}
			v := uint32(binary.BigEndian.Uint16(rec.data))
			if rec.typ == hexExtSegAddr {
				base = v << 4
			} else {
				base = v << 16
			}
		case hexStartSegAddr:
			if len(rec.data) != 4 {
				return nil, 0, errors.Errorf("line %d: invalid start segment address", lineNo)
			}
			cs := uint32(binary.BigEndian.Uint16(rec.data[0:]))
			ip := uint32(binary.BigEndian.Uint16(rec.data[2:]))
			start = cs<<4 | ip
		case hexStartLinAddr:
			if len(rec.data) != 4 {
				return nil, 0, errors.Errorf("line %d: invalid start linear address", lineNo)
			}
			start = binary.BigEndian.Uint32(rec.data)
		default:
			return nil, 0, errors.Errorf("line %d: unsupported record type %d", lineNo, rec.typ)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, errors.Annotatef(err, "line %d", lineNo)
	}
	if !eof {
		return nil, 0, errors.Errorf("unexpected end of data (no EOF record)")
	}
	if cur != nil {
		segs = append(segs, cur)
	}
	return segs, start, nil
}

type hexRecord struct {
	typ    uint8
	offset uint16
	data   []byte
}

func decodeHexRecord(l []byte) (*hexRecord, error) {
	if l[0] != ':' {
		return nil, errors.Errorf("invalid start of the line")
	}
	if len(l) < 11 || len(l)%2 != 1 {
		return nil, errors.Errorf("invalid record length (%d)", len(l))
	}
	ld := make([]byte, (len(l)-1)/2)
	if _, err := hex.Decode(ld, l[1:]); err != nil {
		return nil, errors.Errorf("error decoding record body")
	}
	n := int(ld[0])
	if len(ld) != 4+n+1 {
		return nil, errors.Errorf("data length mismatch (%d vs %d)", n, len(ld)-5)
	}
	sum := uint8(0)
	for _, b := range ld {
		sum += b
	}
	if sum != 0 {
		return nil, errors.Errorf("invalid checksum (0x%02x)", ld[len(ld)-1])
	}
	return &hexRecord{
		typ:    ld[3],
		offset: binary.BigEndian.Uint16(ld[1:]),
		data:   ld[4 : 4+n],
	}, nil
}
