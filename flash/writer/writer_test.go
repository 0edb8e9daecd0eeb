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
package writer

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/iap/flash/common"
	"github.com/mongoose-os/iap/flash/sim"
)

const base = 0x08000000

// 1K pages, 256 words per page.
var testGeom = common.Geometry{Base: base, PageSize: 1024, TotalSize: 16 * 1024}

func newSim(t *testing.T) *sim.Sim {
	s, err := sim.New(testGeom)
	require.NoError(t, err)
	return s
}

func seq(n int, start uint32) []uint32 {
	res := make([]uint32, n)
	for i := range res {
		res[i] = start + uint32(i)
	}
	return res
}

func fill(n int, v uint32) []uint32 {
	res := make([]uint32, n)
	for i := range res {
		res[i] = v
	}
	return res
}

// pagelessMedium reports a geometry with no pages.
type pagelessMedium struct {
	*sim.Sim
}

func (m pagelessMedium) Geometry() common.Geometry {
	return common.Geometry{Base: base, TotalSize: 16 * 1024}
}

func TestWriteInvalidGeometry(t *testing.T) {
	s := newSim(t)
	w := New(pagelessMedium{s})
	err := w.Write(context.Background(), base, fill(4, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page size")
	assert.Empty(t, s.Stats().Events)
	assert.Error(t, w.Write(context.Background(), base, nil))
}

func programSizes(st sim.Stats) []int {
	var res []int
	for _, e := range st.Events {
		if e.Op == sim.OpProgram {
			res = append(res, e.Words)
		}
	}
	return res
}

func TestWriteAllOnesNeverErases(t *testing.T) {
	ctx := context.Background()
	s := newSim(t)
	w := New(s)

	data := fill(100, common.ErasedWord)
	require.NoError(t, w.Write(ctx, base+64, data))
	require.NoError(t, w.Write(ctx, base+64, data))
	assert.Equal(t, 0, s.Stats().Erases)
}

func TestWriteRepeatedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newSim(t)
	w := New(s)

	data := seq(10, 0x1000)
	require.NoError(t, w.Write(ctx, base+0x400, data))
	assert.Equal(t, 0, s.Stats().Erases, "erased page must not be erased")
	first := s.Snapshot()

	require.NoError(t, w.Write(ctx, base+0x400, data))
	assert.Equal(t, first, s.Snapshot())
	// Target words are programmed now, so the second call has to erase.
	st := s.Stats()
	assert.Equal(t, 1, st.Erases)
	assert.Equal(t, map[int]int{1: 1}, st.PageErases)
}

func TestWriteMergesWithinPage(t *testing.T) {
	ctx := context.Background()
	s := newSim(t)
	prior := seq(256, 0xa0000000)
	require.NoError(t, s.Preload(base+0x800, prior))
	w := New(s)

	const offset = 17
	data := seq(30, 0x55000000)
	require.NoError(t, w.Write(ctx, base+0x800+offset*4, data))

	got, err := s.ReadWords(ctx, base+0x800, 256)
	require.NoError(t, err)
	assert.Equal(t, prior[:offset], got[:offset])
	assert.Equal(t, data, got[offset:offset+30])
	assert.Equal(t, prior[offset+30:], got[offset+30:])

	st := s.Stats()
	assert.Equal(t, 1, st.Erases)
	assert.Equal(t, []int{256}, programSizes(st))
}

func TestWriteSpansPages(t *testing.T) {
	ctx := context.Background()
	s := newSim(t)
	w := New(s)

	data := seq(256+10, 1)
	require.NoError(t, w.Write(ctx, base+0x1000, data))

	got, err := s.ReadWords(ctx, base+0x1000, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	touched := map[int]bool{}
	for _, e := range s.Stats().Events {
		touched[e.Page] = true
	}
	assert.Equal(t, map[int]bool{4: true, 5: true}, touched)
}

func TestWriteOutOfRangeLeavesMediumIntact(t *testing.T) {
	ctx := context.Background()
	s := newSim(t)
	require.NoError(t, s.Preload(base+0x3c00, seq(256, 7)))
	before := s.Snapshot()
	w := New(s)

	cases := []struct {
		addr uint32
		n    int
	}{
		{addr: base + 0x3c00, n: 257},
		{addr: base + 0x4000, n: 1},
		{addr: base - 4, n: 2},
		{addr: 0xfffffffc, n: 2},
	}
	for _, c := range cases {
		err := w.Write(ctx, c.addr, seq(c.n, 0))
		assert.Truef(t, common.IsOutOfRange(err), "0x%x/%d: %v", c.addr, c.n, err)
	}
	assert.Equal(t, before, s.Snapshot())
	assert.Empty(t, s.Stats().Events)
}

func TestWriteRejectsMisaligned(t *testing.T) {
	s := newSim(t)
	err := New(s).Write(context.Background(), base+2, []uint32{0})
	assert.True(t, common.IsMisaligned(err))
	assert.Empty(t, s.Stats().Events)
}

func TestWriteEmptyIsNoop(t *testing.T) {
	s := newSim(t)
	assert.NoError(t, New(s).Write(context.Background(), 0, nil))
	assert.Empty(t, s.Stats().Events)
}

func TestWrite300WordsOverProgrammedPages(t *testing.T) {
	ctx := context.Background()
	s := newSim(t)
	prior := fill(512, 0x12345678)
	require.NoError(t, s.Preload(base, prior))
	w := New(s)

	data := seq(300, 0x100)
	require.NoError(t, w.Write(ctx, base, data))

	st := s.Stats()
	assert.Equal(t, 2, st.Erases)
	assert.Equal(t, map[int]int{0: 1, 1: 1}, st.PageErases)
	// The second page is programmed whole: 44 new words merged with the prior contents.
	assert.Equal(t, []int{256, 256}, programSizes(st))

	got, err := s.ReadWords(ctx, base, 512)
	require.NoError(t, err)
	assert.Equal(t, data, got[:300])
	assert.Equal(t, prior[300:], got[300:])
}

func TestWrite300WordsOverErasedPages(t *testing.T) {
	ctx := context.Background()
	s := newSim(t)

	var steps []Progress
	w := New(s, WithProgress(func(p Progress) { steps = append(steps, p) }))
	require.NoError(t, w.Write(ctx, base, seq(300, 0x100)))

	st := s.Stats()
	assert.Equal(t, 0, st.Erases)
	assert.Equal(t, []int{256, 44}, programSizes(st))
	require.Len(t, steps, 2)
	assert.Equal(t, Progress{Page: 0, Addr: base, Words: 256, WordsDone: 256, WordsTotal: 300}, steps[0])
	assert.Equal(t, Progress{Page: 1, Addr: base + 1024, Words: 44, WordsDone: 300, WordsTotal: 300}, steps[1])
}

func TestWritePagesInIncreasingOrder(t *testing.T) {
	ctx := context.Background()
	s := newSim(t)
	require.NoError(t, s.Preload(base, fill(4*256, 0)))
	w := New(s)

	require.NoError(t, w.Write(ctx, base+100*4, seq(3*256, 0)))
	last := -1
	for _, e := range s.Stats().Events {
		assert.True(t, e.Page >= last, "page %d after %d", e.Page, last)
		last = e.Page
	}
	assert.Equal(t, 3, last)
}

func TestWriteMediumFaultStops(t *testing.T) {
	ctx := context.Background()
	s := newSim(t)
	require.NoError(t, s.Preload(base, fill(3*256, 0)))
	s.InjectFault(sim.OpErase, 1, errors.New("stuck bit"))
	w := New(s)

	err := w.Write(ctx, base, seq(3*256, 1))
	require.Error(t, err)
	assert.True(t, common.IsMediumFault(err))
	mf := errors.Cause(err).(*common.MediumFaultError)
	assert.Equal(t, "erase", mf.Op)
	assert.Equal(t, 1, mf.Page)

	for _, e := range s.Stats().Events {
		assert.NotEqual(t, 2, e.Page, "page after the fault must not be touched")
	}
	got, err := s.ReadWords(ctx, base, 256)
	require.NoError(t, err)
	assert.Equal(t, seq(256, 1), got)
}

func TestWriteRegion(t *testing.T) {
	ctx := context.Background()
	s := newSim(t)
	w := New(s, WithRegion(base+0x1000, base+0x8000))
	assert.Equal(t, common.NewRegion(base+0x1000, base+0x4000), w.Region())

	assert.True(t, common.IsOutOfRange(w.Write(ctx, base+0xffc, []uint32{1})))
	assert.NoError(t, w.Write(ctx, base+0x1000, []uint32{1}))
	assert.True(t, common.IsOutOfRange(w.Write(ctx, base+0x3ffc, []uint32{1, 2})))
}
