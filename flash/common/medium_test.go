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
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometry(t *testing.T) {
	g := Geometry{Base: 0x08000000, PageSize: 2048, TotalSize: 512 * 1024}
	assert.NoError(t, g.Validate())
	assert.Equal(t, 256, g.NumPages())
	assert.Equal(t, 512, g.WordsPerPage())
	assert.Equal(t, uint32(0x08080000), g.End())
	assert.Equal(t, 2, g.PageIndex(0x08001000))
	assert.Equal(t, 2, g.PageIndex(0x080017fc))
	assert.Equal(t, uint32(0x08001000), g.PageAddr(2))
	assert.Equal(t, 0, g.WordOffset(0x08001000))
	assert.Equal(t, 511, g.WordOffset(0x080017fc))

	assert.True(t, g.Contains(0x08000000, 512*256))
	assert.False(t, g.Contains(0x08000000, 512*256+1))
	assert.False(t, g.Contains(0x07fffffc, 1))
	assert.True(t, g.Contains(0x0807fffc, 1))
	assert.True(t, g.Contains(0x08080000, 0))
}

func TestGeometryValidate(t *testing.T) {
	cases := []struct {
		g  Geometry
		ok bool
	}{
		{g: Geometry{Base: 0, PageSize: 1024, TotalSize: 64 * 1024}, ok: true},
		{g: Geometry{Base: 0x08000000, PageSize: 1000, TotalSize: 64000}},
		{g: Geometry{Base: 0x08000200, PageSize: 1024, TotalSize: 64 * 1024}},
		{g: Geometry{Base: 0x08000000, PageSize: 1024, TotalSize: 1000}},
		{g: Geometry{Base: 0x08000000, PageSize: 2, TotalSize: 1024}},
		{g: Geometry{Base: 0xfffff000, PageSize: 1024, TotalSize: 8192}},
	}
	for i, c := range cases {
		err := c.g.Validate()
		if c.ok {
			assert.NoErrorf(t, err, "case %d", i)
		} else {
			require.Errorf(t, err, "case %d", i)
			je, ok := err.(*errors.Err)
			require.Truef(t, ok, "case %d: %T", i, err)
			file, _ := je.Location()
			assert.Containsf(t, file, "medium.go", "case %d", i)
		}
	}
}

func TestWordConversion(t *testing.T) {
	words := WordsFromBytes([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})
	assert.Equal(t, []uint32{0x04030201, 0x08070605}, words)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}, BytesFromWords(words))
}

func TestErrorPredicates(t *testing.T) {
	err := errors.Annotatef(&OutOfRangeError{Addr: 4, NumWords: 1}, "write")
	assert.True(t, IsOutOfRange(err))
	assert.False(t, IsMediumFault(err))
	assert.True(t, IsMediumFault(errors.Trace(&MediumFaultError{Op: "erase", Err: errors.New("stuck")})))
	assert.True(t, IsCommitted(errors.Trace(ErrCommitted)))
	assert.True(t, IsIncompleteWord(&IncompleteWordError{Trailing: 2}))
	assert.True(t, IsInvalidImage(errors.Annotatef(&InvalidImageError{}, "boot")))
	assert.True(t, IsMisaligned(&MisalignedError{Addr: 3}))
	assert.True(t, IsTransferFailed(&TransferError{Op: "jump", Err: errors.New("x")}))
	assert.True(t, AllErased([]uint32{ErasedWord, ErasedWord}))
	assert.False(t, AllErased([]uint32{ErasedWord, 0}))
}
