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
package common

import (
	"context"
	"fmt"

	"github.com/juju/errors"
)

const (
	// WordSize is the unit accepted by the program primitive, in bytes.
	WordSize = 4
	// ErasedWord is the value of a word in a freshly erased page.
	ErasedWord uint32 = 0xffffffff
)

// Geometry describes the layout of a page-erasable medium.
type Geometry struct {
	Base      uint32
	PageSize  uint32
	TotalSize uint32
}

func (g Geometry) String() string {
	return fmt.Sprintf("0x%08x-0x%08x (%d pages of %d bytes)", g.Base, g.End(), g.NumPages(), g.PageSize)
}

func (g Geometry) End() uint32 {
	return g.Base + g.TotalSize
}

func (g Geometry) NumPages() int {
	if g.PageSize == 0 {
		return 0
	}
	return int(g.TotalSize / g.PageSize)
}

func (g Geometry) WordsPerPage() int {
	return int(g.PageSize / WordSize)
}

// PageIndex returns the index of the page containing addr. addr must be within the medium.
func (g Geometry) PageIndex(addr uint32) int {
	return int((addr - g.Base) / g.PageSize)
}

// PageAddr returns the address of the first byte of the given page.
func (g Geometry) PageAddr(page int) uint32 {
	return g.Base + uint32(page)*g.PageSize
}

// WordOffset returns the offset of addr within its page, in words.
func (g Geometry) WordOffset(addr uint32) int {
	return int(((addr - g.Base) % g.PageSize) / WordSize)
}

// Contains returns true if numWords words starting at addr lie entirely within the medium.
func (g Geometry) Contains(addr uint32, numWords int) bool {
	return NewRegion(g.Base, g.End()).Contains(addr, numWords)
}

// Validate checks that the geometry is usable by the page writer.
func (g Geometry) Validate() error {
	switch {
	case g.PageSize == 0 || g.PageSize&(g.PageSize-1) != 0:
		return errors.Errorf("page size must be a power of two, got %d", g.PageSize)
	case g.PageSize < WordSize:
		return errors.Errorf("page size %d is smaller than a word", g.PageSize)
	case g.Base%g.PageSize != 0:
		return errors.Errorf("base 0x%x is not page-aligned", g.Base)
	case g.TotalSize == 0 || g.TotalSize%g.PageSize != 0:
		return errors.Errorf("total size %d is not a multiple of page size %d", g.TotalSize, g.PageSize)
	case uint64(g.Base)+uint64(g.TotalSize) > 1<<32:
		return errors.Errorf("medium does not fit the 32-bit address space")
	}
	return nil
}

// Region is a half-open address range [Start, End).
type Region struct {
	Start uint32
	End   uint32
}

func NewRegion(start, end uint32) Region {
	return Region{Start: start, End: end}
}

func (r Region) String() string {
	return fmt.Sprintf("[0x%08x, 0x%08x)", r.Start, r.End)
}

func (r Region) Contains(addr uint32, numWords int) bool {
	if numWords < 0 || addr < r.Start {
		return false
	}
	end := uint64(addr) + uint64(numWords)*WordSize
	return end <= uint64(r.End)
}

// MemReader provides read access to the medium.
type MemReader interface {
	// ReadWords reads count words starting at addr. addr must be word-aligned.
	ReadWords(ctx context.Context, addr uint32, count int) ([]uint32, error)
}

// Medium is a page-erasable storage whose program operation can only clear bits.
type Medium interface {
	MemReader
	Geometry() Geometry
	// ErasePage sets every bit of the page to 1.
	ErasePage(ctx context.Context, page int) error
	// ProgramWords programs words starting at addr. addr must be word-aligned
	// and the range must not cross the end of the medium.
	ProgramWords(ctx context.Context, addr uint32, words []uint32) error
}

// AllErased returns true if every word equals ErasedWord.
func AllErased(words []uint32) bool {
	for _, w := range words {
		if w != ErasedWord {
			return false
		}
	}
	return true
}
