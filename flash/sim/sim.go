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
// Package sim provides NOR flash media backed by host memory or a file.
package sim

import (
	"context"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/iap/flash/common"
)

type Op string

const (
	OpRead    Op = "read"
	OpErase   Op = "erase"
	OpProgram Op = "program"
)

// Event is a single primitive operation performed on the medium.
type Event struct {
	Op    Op
	Page  int
	Addr  uint32
	Words int
}

// Stats counts the primitive operations performed on the medium.
type Stats struct {
	Erases          int
	PageErases      map[int]int
	ProgramCalls    int
	WordsProgrammed int
	Events          []Event
}

// Sim is an in-memory NOR flash. Programming can only clear bits; attempting
// to set a bit without an erase fails the same way the real controller does.
type Sim struct {
	geom   common.Geometry
	mem    []uint32
	stats  Stats
	faults map[Op]map[int]error
}

func New(g common.Geometry) (*Sim, error) {
	if err := g.Validate(); err != nil {
		return nil, errors.Annotatef(err, "invalid geometry")
	}
	s := &Sim{
		geom:   g,
		mem:    make([]uint32, g.TotalSize/common.WordSize),
		faults: make(map[Op]map[int]error),
	}
	for i := range s.mem {
		s.mem[i] = common.ErasedWord
	}
	s.ResetStats()
	return s, nil
}

func (s *Sim) Geometry() common.Geometry {
	return s.geom
}

func (s *Sim) checkRange(addr uint32, count int) error {
	if addr%common.WordSize != 0 {
		return &common.MisalignedError{Addr: addr}
	}
	if !s.geom.Contains(addr, count) {
		return &common.OutOfRangeError{Addr: addr, NumWords: count, Region: common.NewRegion(s.geom.Base, s.geom.End())}
	}
	return nil
}

func (s *Sim) index(addr uint32) int {
	return int((addr - s.geom.Base) / common.WordSize)
}

func (s *Sim) fault(op Op, page int) error {
	if err, ok := s.faults[op][page]; ok {
		return err
	}
	if err, ok := s.faults[op][-1]; ok {
		return err
	}
	return nil
}

// InjectFault makes every subsequent op on the page fail with err.
// page -1 matches any page. A nil err clears the fault.
func (s *Sim) InjectFault(op Op, page int, err error) {
	if err == nil {
		delete(s.faults[op], page)
		return
	}
	if s.faults[op] == nil {
		s.faults[op] = make(map[int]error)
	}
	s.faults[op][page] = err
}

func (s *Sim) ReadWords(ctx context.Context, addr uint32, count int) ([]uint32, error) {
	if err := s.checkRange(addr, count); err != nil {
		return nil, errors.Trace(err)
	}
	if err := s.fault(OpRead, s.geom.PageIndex(addr)); err != nil {
		return nil, errors.Trace(err)
	}
	res := make([]uint32, count)
	copy(res, s.mem[s.index(addr):])
	s.stats.Events = append(s.stats.Events, Event{Op: OpRead, Page: s.geom.PageIndex(addr), Addr: addr, Words: count})
	return res, nil
}

func (s *Sim) ErasePage(ctx context.Context, page int) error {
	if page < 0 || page >= s.geom.NumPages() {
		return errors.Errorf("invalid page %d", page)
	}
	addr := s.geom.PageAddr(page)
	glog.V(4).Infof("erase page %d @ 0x%08x", page, addr)
	s.stats.Events = append(s.stats.Events, Event{Op: OpErase, Page: page, Addr: addr})
	if err := s.fault(OpErase, page); err != nil {
		return errors.Trace(err)
	}
	start := s.index(addr)
	for i := start; i < start+s.geom.WordsPerPage(); i++ {
		s.mem[i] = common.ErasedWord
	}
	s.stats.Erases++
	s.stats.PageErases[page]++
	return nil
}

func (s *Sim) ProgramWords(ctx context.Context, addr uint32, words []uint32) error {
	if err := s.checkRange(addr, len(words)); err != nil {
		return errors.Trace(err)
	}
	page := s.geom.PageIndex(addr)
	glog.V(4).Infof("program %d words @ 0x%08x", len(words), addr)
	s.stats.Events = append(s.stats.Events, Event{Op: OpProgram, Page: page, Addr: addr, Words: len(words)})
	if err := s.fault(OpProgram, page); err != nil {
		return errors.Trace(err)
	}
	start := s.index(addr)
	for i, w := range words {
		if old := s.mem[start+i]; old&w != w {
			return errors.Errorf("0x%08x: cannot program 0x%08x over 0x%08x without erase",
				addr+uint32(i*common.WordSize), w, old)
		}
		s.mem[start+i] = w
	}
	s.stats.ProgramCalls++
	s.stats.WordsProgrammed += len(words)
	return nil
}

// Preload sets medium contents directly, bypassing program semantics and stats.
func (s *Sim) Preload(addr uint32, words []uint32) error {
	if err := s.checkRange(addr, len(words)); err != nil {
		return errors.Trace(err)
	}
	copy(s.mem[s.index(addr):], words)
	return nil
}

// Snapshot returns a copy of the entire medium.
func (s *Sim) Snapshot() []uint32 {
	res := make([]uint32, len(s.mem))
	copy(res, s.mem)
	return res
}

func (s *Sim) Stats() Stats {
	st := s.stats
	st.PageErases = make(map[int]int)
	for k, v := range s.stats.PageErases {
		st.PageErases[k] = v
	}
	st.Events = append([]Event(nil), s.stats.Events...)
	return st
}

func (s *Sim) ResetStats() {
	s.stats = Stats{PageErases: make(map[int]int)}
}
