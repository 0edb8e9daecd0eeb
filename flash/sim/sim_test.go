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
package sim

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/iap/flash/common"
)

var testGeom = common.Geometry{Base: 0x08000000, PageSize: 1024, TotalSize: 8 * 1024}

func TestSimProgramClearsBitsOnly(t *testing.T) {
	ctx := context.Background()
	s, err := New(testGeom)
	require.NoError(t, err)

	require.NoError(t, s.ProgramWords(ctx, 0x08000000, []uint32{0xfffffff0}))
	require.NoError(t, s.ProgramWords(ctx, 0x08000000, []uint32{0x0000fff0}))
	assert.Error(t, s.ProgramWords(ctx, 0x08000000, []uint32{0x0000ffff}))

	words, err := s.ReadWords(ctx, 0x08000000, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x0000fff0, common.ErasedWord}, words)

	require.NoError(t, s.ErasePage(ctx, 0))
	words, err = s.ReadWords(ctx, 0x08000000, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{common.ErasedWord}, words)

	st := s.Stats()
	assert.Equal(t, 1, st.Erases)
	assert.Equal(t, 1, st.PageErases[0])
	assert.Equal(t, 2, st.ProgramCalls)
	assert.Equal(t, 2, st.WordsProgrammed)
}

func TestSimRangeChecks(t *testing.T) {
	ctx := context.Background()
	s, err := New(testGeom)
	require.NoError(t, err)

	_, err = s.ReadWords(ctx, 0x08002000, 1)
	assert.True(t, common.IsOutOfRange(err))
	_, err = s.ReadWords(ctx, 0x08000002, 1)
	assert.True(t, common.IsMisaligned(err))
	assert.Error(t, s.ErasePage(ctx, 8))
	assert.Error(t, s.ErasePage(ctx, -1))
	assert.True(t, common.IsOutOfRange(s.ProgramWords(ctx, 0x08001ffc, []uint32{1, 2})))
}

func TestSimFaults(t *testing.T) {
	ctx := context.Background()
	s, err := New(testGeom)
	require.NoError(t, err)

	s.InjectFault(OpErase, 3, errors.New("stuck bit"))
	assert.NoError(t, s.ErasePage(ctx, 2))
	assert.EqualError(t, s.ErasePage(ctx, 3), "stuck bit")
	s.InjectFault(OpErase, 3, nil)
	assert.NoError(t, s.ErasePage(ctx, 3))

	s.InjectFault(OpProgram, -1, errors.New("timeout"))
	assert.Error(t, s.ProgramWords(ctx, 0x08000000, []uint32{0}))
}

func TestFileMedium(t *testing.T) {
	ctx := context.Background()
	dir, err := ioutil.TempDir("", "iap-sim")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "flash.bin")

	fm, err := OpenFile(path, testGeom)
	require.NoError(t, err)

	_, err = OpenFile(path, testGeom)
	assert.Error(t, err, "second open must fail while locked")

	require.NoError(t, fm.ProgramWords(ctx, 0x08000400, []uint32{0x11223344, 0x55667788}))
	require.NoError(t, fm.Close())

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, int(testGeom.TotalSize))
	assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11, 0x88, 0x77, 0x66, 0x55}, data[0x400:0x408])
	assert.Equal(t, byte(0xff), data[0])

	fm, err = OpenFile(path, testGeom)
	require.NoError(t, err)
	words, err := fm.ReadWords(ctx, 0x08000400, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x11223344, 0x55667788, common.ErasedWord}, words)
	require.NoError(t, fm.ErasePage(ctx, 1))
	require.NoError(t, fm.Close())

	data, err = ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, data[0x400:0x404])

	_, err = OpenFile(path, common.Geometry{Base: 0x08000000, PageSize: 1024, TotalSize: 4 * 1024})
	assert.Error(t, err)
}
