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
// Package stager writes a firmware image byte stream into flash through a page writer.
package stager

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"io"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/iap/flash/common"
)

// PageWriter is the part of writer.Writer the stager needs.
type PageWriter interface {
	Geometry() common.Geometry
	Write(ctx context.Context, addr uint32, words []uint32) error
}

// TailPolicy determines what happens to bytes that do not form a complete word at the end of a stream.
type TailPolicy int

const (
	// TailReject writes all complete words and fails with IncompleteWordError.
	TailReject TailPolicy = iota
	// TailZeroPad completes the last word with zero bytes.
	TailZeroPad
)

func (tp TailPolicy) String() string {
	switch tp {
	case TailReject:
		return "reject"
	case TailZeroPad:
		return "zero-pad"
	}
	return fmt.Sprintf("TailPolicy(%d)", int(tp))
}

// ParseTailPolicy accepts the names returned by TailPolicy.String.
func ParseTailPolicy(s string) (TailPolicy, error) {
	switch s {
	case "reject":
		return TailReject, nil
	case "zero-pad", "pad":
		return TailZeroPad, nil
	}
	return TailReject, errors.NotValidf("tail policy %q", s)
}

// Flush describes a single write issued by the stager.
type Flush struct {
	Addr      uint32
	Words     int
	BytesDone int64
}

type Config struct {
	// BufferWords is the accumulator capacity. Defaults to one page worth of words.
	BufferWords int
	Tail        TailPolicy
	Progress    func(Flush)
	// ReadSize is the size of reads issued to the source stream.
	ReadSize int
}

type Option func(*Config)

func WithBufferWords(n int) Option {
	return func(c *Config) {
		c.BufferWords = n
	}
}

func WithTailPolicy(tp TailPolicy) Option {
	return func(c *Config) {
		c.Tail = tp
	}
}

func WithProgress(f func(Flush)) Option {
	return func(c *Config) {
		c.Progress = f
	}
}

func WithReadSize(n int) Option {
	return func(c *Config) {
		c.ReadSize = n
	}
}

type Stager struct {
	w   PageWriter
	cfg Config
}

func New(w PageWriter, opts ...Option) *Stager {
	s := &Stager{
		w: w,
		cfg: Config{
			BufferWords: w.Geometry().WordsPerPage(),
			ReadSize:    4096,
		},
	}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	if s.cfg.BufferWords <= 0 {
		s.cfg.BufferWords = w.Geometry().WordsPerPage()
	}
	if s.cfg.ReadSize < common.WordSize {
		s.cfg.ReadSize = common.WordSize
	}
	return s
}

// Result summarizes a staging operation.
type Result struct {
	Addr    uint32
	End     uint32
	Bytes   int64
	Words   int
	Flushes int
	// SHA256 of the consumed stream, for reporting only.
	SHA256 []byte
}

// cursor tracks the staging progress through one stream.
type cursor struct {
	s       *Stager
	addr    uint32
	acc     []uint32
	partial [common.WordSize]byte
	np      int
	bytes   int64
	res     *Result
	h       hash.Hash
}

func (c *cursor) flush(ctx context.Context) error {
	if len(c.acc) == 0 {
		return nil
	}
	glog.V(2).Infof("flush %d words @ 0x%08x", len(c.acc), c.addr)
	if err := c.s.w.Write(ctx, c.addr, c.acc); err != nil {
		return errors.Annotatef(err, "failed to write %d words @ 0x%08x", len(c.acc), c.addr)
	}
	n := len(c.acc)
	c.res.Flushes++
	c.res.Words += n
	if c.s.cfg.Progress != nil {
		c.s.cfg.Progress(Flush{Addr: c.addr, Words: n, BytesDone: c.bytes})
	}
	c.addr += uint32(n * common.WordSize)
	c.res.End = c.addr
	c.acc = c.acc[:0]
	return nil
}

func (c *cursor) feed(ctx context.Context, data []byte) error {
	for _, b := range data {
		c.bytes++
		c.partial[c.np] = b
		c.np++
		if c.np < common.WordSize {
			continue
		}
		c.np = 0
		c.acc = append(c.acc, binary.LittleEndian.Uint32(c.partial[:]))
		if len(c.acc) == cap(c.acc) {
			if err := c.flush(ctx); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return nil
}

// Stage consumes r and writes its contents starting at addr, reassembling
// little-endian words. Data is written in chunks of BufferWords words at
// increasing addresses, the final chunk may be shorter.
//
// A failure leaves the chunks before it written. The returned Result is
// valid in both cases.
func (s *Stager) Stage(ctx context.Context, r io.Reader, addr uint32) (*Result, error) {
	res := &Result{Addr: addr, End: addr}
	if addr%common.WordSize != 0 {
		return res, errors.Trace(&common.MisalignedError{Addr: addr})
	}
	c := &cursor{
		s:    s,
		addr: addr,
		acc:  make([]uint32, 0, s.cfg.BufferWords),
		res:  res,
		h:    sha256.New(),
	}
	glog.V(1).Infof("staging @ 0x%08x, buffer %d words, tail: %s", addr, s.cfg.BufferWords, s.cfg.Tail)
	buf := make([]byte, s.cfg.ReadSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.h.Write(buf[:n])
			if ferr := c.feed(ctx, buf[:n]); ferr != nil {
				c.finish()
				return res, errors.Trace(ferr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			c.finish()
			return res, errors.Annotatef(err, "failed to read image after %d bytes", c.bytes)
		}
	}
	var tailErr error
	if c.np > 0 {
		switch s.cfg.Tail {
		case TailZeroPad:
			glog.V(1).Infof("padding last word (%d dangling bytes)", c.np)
			for i := c.np; i < common.WordSize; i++ {
				c.partial[i] = 0
			}
			c.acc = append(c.acc, binary.LittleEndian.Uint32(c.partial[:]))
		default:
			tailErr = &common.IncompleteWordError{Trailing: c.np}
		}
	}
	if err := c.flush(ctx); err != nil {
		c.finish()
		return res, errors.Trace(err)
	}
	c.finish()
	if tailErr != nil {
		tailErr.(*common.IncompleteWordError).Written = int64(res.Words * common.WordSize)
		return res, errors.Trace(tailErr)
	}
	return res, nil
}

func (c *cursor) finish() {
	c.res.Bytes = c.bytes
	c.res.SHA256 = c.h.Sum(nil)
}
