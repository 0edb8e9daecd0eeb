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
// Package writer programs word-aligned data into page-erasable flash,
// erasing only the pages whose target words are not already erased.
package writer

import (
	"context"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/iap/flash/common"
)

// Progress describes one completed page step of a write.
type Progress struct {
	Page       int
	Addr       uint32
	Words      int
	Erased     bool
	WordsDone  int
	WordsTotal int
}

type ProgressFunc func(Progress)

type Config struct {
	// Region restricts writes to a window of the medium. Defaults to the whole medium.
	Region *common.Region
	// Progress, if set, is called after each page step.
	Progress ProgressFunc
}

type Option func(*Config)

// WithRegion restricts writes to [start, end).
func WithRegion(start, end uint32) Option {
	return func(c *Config) {
		r := common.NewRegion(start, end)
		c.Region = &r
	}
}

func WithProgress(f ProgressFunc) Option {
	return func(c *Config) {
		c.Progress = f
	}
}

type Writer struct {
	m      common.Medium
	geom   common.Geometry
	region common.Region
	cfg    Config
	// geomErr is returned by every Write when the medium reports an unusable geometry.
	geomErr error
}

func New(m common.Medium, opts ...Option) *Writer {
	w := &Writer{m: m, geom: m.Geometry()}
	if err := w.geom.Validate(); err != nil {
		w.geomErr = errors.Annotatef(err, "invalid medium geometry %s", w.geom)
	}
	for _, opt := range opts {
		opt(&w.cfg)
	}
	w.region = common.NewRegion(w.geom.Base, w.geom.End())
	if r := w.cfg.Region; r != nil {
		// Never extend past the medium.
		if r.Start > w.region.Start {
			w.region.Start = r.Start
		}
		if r.End < w.region.End {
			w.region.End = r.End
		}
		if w.region.End < w.region.Start {
			w.region.End = w.region.Start
		}
	}
	return w
}

func (w *Writer) Geometry() common.Geometry {
	return w.geom
}

// Region returns the window writes are confined to.
func (w *Writer) Region() common.Region {
	return w.region
}

// Write programs words starting at addr. The result is the same as if the
// affected range had been erased and reprogrammed, but a page is only erased
// if any of its target words is not in the erased state.
//
// The whole request is checked before anything is touched. A medium failure
// stops the write at the failing page; pages before it are complete.
func (w *Writer) Write(ctx context.Context, addr uint32, words []uint32) error {
	if w.geomErr != nil {
		return w.geomErr
	}
	if len(words) == 0 {
		return nil
	}
	if addr%common.WordSize != 0 {
		return errors.Trace(&common.MisalignedError{Addr: addr})
	}
	if !w.region.Contains(addr, len(words)) {
		return errors.Trace(&common.OutOfRangeError{Addr: addr, NumWords: len(words), Region: w.region})
	}
	glog.V(1).Infof("write %d words @ 0x%08x", len(words), addr)
	wpp := w.geom.WordsPerPage()
	done := 0
	for done < len(words) {
		page := w.geom.PageIndex(addr)
		offset := w.geom.WordOffset(addr)
		n := wpp - offset
		if left := len(words) - done; n > left {
			n = left
		}
		erased, err := w.writePage(ctx, page, offset, words[done:done+n])
		if err != nil {
			return errors.Trace(err)
		}
		done += n
		if w.cfg.Progress != nil {
			w.cfg.Progress(Progress{
				Page:       page,
				Addr:       addr,
				Words:      n,
				Erased:     erased,
				WordsDone:  done,
				WordsTotal: len(words),
			})
		}
		addr += uint32(n * common.WordSize)
	}
	return nil
}

// writePage writes data at the given word offset of a page and reports whether the page was erased.
func (w *Writer) writePage(ctx context.Context, page, offset int, data []uint32) (bool, error) {
	pageAddr := w.geom.PageAddr(page)
	buf, err := w.m.ReadWords(ctx, pageAddr, w.geom.WordsPerPage())
	if err != nil {
		return false, &common.MediumFaultError{Op: "read", Page: page, Addr: pageAddr, Err: err}
	}
	target := buf[offset : offset+len(data)]
	if common.AllErased(target) {
		addr := pageAddr + uint32(offset*common.WordSize)
		glog.V(2).Infof("page %d: %d words @ 0x%08x, no erase needed", page, len(data), addr)
		if err := w.m.ProgramWords(ctx, addr, data); err != nil {
			return false, &common.MediumFaultError{Op: "program", Page: page, Addr: addr, Err: err}
		}
		return false, nil
	}
	glog.V(2).Infof("page %d: %d words @ +%d, erasing", page, len(data), offset)
	if err := w.m.ErasePage(ctx, page); err != nil {
		return false, &common.MediumFaultError{Op: "erase", Page: page, Addr: pageAddr, Err: err}
	}
	copy(target, data)
	glog.V(3).Infof("page %d: programming merged page (%d words)", page, len(buf))
	if err := w.m.ProgramWords(ctx, pageAddr, buf); err != nil {
		return true, &common.MediumFaultError{Op: "program", Page: page, Addr: pageAddr, Err: err}
	}
	return true, nil
}
