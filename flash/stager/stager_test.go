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
package stager

import (
	"bytes"
	"context"
	"crypto/sha256"
	"testing"
	"testing/iotest"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/iap/flash/common"
	"github.com/mongoose-os/iap/flash/sim"
	"github.com/mongoose-os/iap/flash/writer"
)

const base = 0x08000000

var testGeom = common.Geometry{Base: base, PageSize: 1024, TotalSize: 16 * 1024}

type writeCall struct {
	addr  uint32
	words []uint32
}

type recordingWriter struct {
	calls []writeCall
	err   error
}

func (rw *recordingWriter) Geometry() common.Geometry {
	return testGeom
}

func (rw *recordingWriter) Write(ctx context.Context, addr uint32, words []uint32) error {
	if rw.err != nil {
		return rw.err
	}
	rw.calls = append(rw.calls, writeCall{addr: addr, words: append([]uint32(nil), words...)})
	return nil
}

func byteSeq(n int) []byte {
	res := make([]byte, n)
	for i := range res {
		res[i] = byte(i + 1)
	}
	return res
}

func TestStageReassemblesLittleEndian(t *testing.T) {
	ctx := context.Background()
	s, err := sim.New(testGeom)
	require.NoError(t, err)

	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	res, err := New(writer.New(s)).Stage(ctx, bytes.NewReader(data), base+0x800)
	require.NoError(t, err)

	words, err := s.ReadWords(ctx, base+0x800, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x04030201, 0x08070605}, words)
	assert.Equal(t, int64(8), res.Bytes)
	assert.Equal(t, 2, res.Words)
	assert.Equal(t, 1, res.Flushes)
	assert.Equal(t, uint32(base+0x808), res.End)
	sum := sha256.Sum256(data)
	assert.Equal(t, sum[:], res.SHA256)
}

func TestStageFlushesInOrder(t *testing.T) {
	rw := &recordingWriter{}
	var flushes []Flush
	st := New(rw, WithBufferWords(4), WithProgress(func(f Flush) { flushes = append(flushes, f) }))

	res, err := st.Stage(context.Background(), iotest.OneByteReader(bytes.NewReader(byteSeq(40))), base)
	require.NoError(t, err)
	require.Len(t, rw.calls, 3)
	assert.Equal(t, uint32(base), rw.calls[0].addr)
	assert.Equal(t, uint32(base+16), rw.calls[1].addr)
	assert.Equal(t, uint32(base+32), rw.calls[2].addr)
	assert.Len(t, rw.calls[0].words, 4)
	assert.Len(t, rw.calls[1].words, 4)
	assert.Equal(t, []uint32{0x24232221, 0x28272625}, rw.calls[2].words)
	assert.Equal(t, 3, res.Flushes)
	require.Len(t, flushes, 3)
	assert.Equal(t, Flush{Addr: base + 32, Words: 2, BytesDone: 40}, flushes[2])
}

func TestStageProgressWithinOneRead(t *testing.T) {
	rw := &recordingWriter{}
	var done []int64
	st := New(rw, WithProgress(func(f Flush) { done = append(done, f.BytesDone) }))

	// One read delivers all four pages.
	res, err := st.Stage(context.Background(), bytes.NewReader(byteSeq(4096)), base)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Flushes)
	assert.Equal(t, []int64{1024, 2048, 3072, 4096}, done)
}

func TestStageDefaultBufferIsOnePage(t *testing.T) {
	rw := &recordingWriter{}
	_, err := New(rw).Stage(context.Background(), bytes.NewReader(make([]byte, 1024*2+8)), base)
	require.NoError(t, err)
	require.Len(t, rw.calls, 3)
	assert.Len(t, rw.calls[0].words, 256)
	assert.Len(t, rw.calls[1].words, 256)
	assert.Len(t, rw.calls[2].words, 2)
}

func TestStageEmptyStream(t *testing.T) {
	rw := &recordingWriter{}
	res, err := New(rw).Stage(context.Background(), bytes.NewReader(nil), base)
	require.NoError(t, err)
	assert.Empty(t, rw.calls)
	assert.Equal(t, 0, res.Words)
	assert.Equal(t, uint32(base), res.End)
}

func TestStageTrailingBytes(t *testing.T) {
	ctx := context.Background()

	rw := &recordingWriter{}
	res, err := New(rw, WithBufferWords(4)).Stage(ctx, bytes.NewReader(byteSeq(9)), base)
	require.Error(t, err)
	require.True(t, common.IsIncompleteWord(err))
	iwe := errors.Cause(err).(*common.IncompleteWordError)
	assert.Equal(t, 1, iwe.Trailing)
	assert.Equal(t, int64(8), iwe.Written)
	assert.Equal(t, int64(9), res.Bytes)
	require.Len(t, rw.calls, 1)
	assert.Equal(t, []uint32{0x04030201, 0x08070605}, rw.calls[0].words)

	rw = &recordingWriter{}
	res, err = New(rw, WithTailPolicy(TailZeroPad)).Stage(ctx, bytes.NewReader(byteSeq(6)), base)
	require.NoError(t, err)
	require.Len(t, rw.calls, 1)
	assert.Equal(t, []uint32{0x04030201, 0x00000605}, rw.calls[0].words)
	assert.Equal(t, 2, res.Words)
}

func TestStageMisaligned(t *testing.T) {
	rw := &recordingWriter{}
	_, err := New(rw).Stage(context.Background(), bytes.NewReader(byteSeq(8)), base+1)
	assert.True(t, common.IsMisaligned(err))
	assert.Empty(t, rw.calls)
}

type failingReader struct {
	data []byte
}

func (fr *failingReader) Read(p []byte) (int, error) {
	if len(fr.data) == 0 {
		return 0, errors.New("connection reset")
	}
	n := copy(p, fr.data)
	fr.data = fr.data[n:]
	return n, nil
}

func TestStageReaderError(t *testing.T) {
	rw := &recordingWriter{}
	res, err := New(rw, WithBufferWords(2)).Stage(context.Background(), &failingReader{data: byteSeq(12)}, base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, int64(12), res.Bytes)
	// Only full buffers made it out.
	require.Len(t, rw.calls, 1)
}

func TestStageWriterErrorStops(t *testing.T) {
	ctx := context.Background()
	s, err := sim.New(testGeom)
	require.NoError(t, err)

	// 3 pages worth of data starting at the last two pages of the medium.
	data := bytes.Repeat([]byte{0xaa, 0x55, 0x00, 0x11}, 3*256)
	res, err := New(writer.New(s)).Stage(ctx, bytes.NewReader(data), base+14*1024)
	require.Error(t, err)
	assert.True(t, common.IsOutOfRange(err))
	assert.Equal(t, 2, res.Flushes)
	assert.Equal(t, uint32(base+16*1024), res.End)
}

func TestParseTailPolicy(t *testing.T) {
	for _, tp := range []TailPolicy{TailReject, TailZeroPad} {
		got, err := ParseTailPolicy(tp.String())
		require.NoError(t, err)
		assert.Equal(t, tp, got)
	}
	_, err := ParseTailPolicy("truncate")
	assert.Error(t, err)
}
