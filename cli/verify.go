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
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/juju/errors"
	"github.com/sergi/go-diff/diffmatchpatch"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/iap/cli/ourutil"
	"github.com/mongoose-os/iap/common/multierror"
	"github.com/mongoose-os/iap/flash/common"
	"github.com/mongoose-os/iap/image"
)

// mismatchError describes one page whose contents differ from the expected data.
type mismatchError struct {
	Addr uint32
	Want []byte
	Got  []byte
}

func (e *mismatchError) firstDiff() int {
	for i := range e.Want {
		if i >= len(e.Got) || e.Want[i] != e.Got[i] {
			return i
		}
	}
	return len(e.Want)
}

func (e *mismatchError) Error() string {
	i := e.firstDiff()
	if i >= len(e.Got) {
		return fmt.Sprintf("short read @ 0x%08x", e.Addr+uint32(i))
	}
	return fmt.Sprintf("mismatch @ 0x%08x: expected 0x%02x, got 0x%02x", e.Addr+uint32(i), e.Want[i], e.Got[i])
}

// Diff renders the differing lines of the hex dumps, expected with "-" and actual with "+".
func (e *mismatchError) Diff() string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(ourutil.HexDump(e.Addr, e.Want), ourutil.HexDump(e.Addr, e.Got))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	var sb strings.Builder
	del, ins := color.New(color.FgRed), color.New(color.FgGreen)
	for _, d := range diffs {
		var c *color.Color
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			c, prefix = del, "-"
		case diffmatchpatch.DiffInsert:
			c, prefix = ins, "+"
		default:
			continue
		}
		for _, l := range strings.SplitAfter(d.Text, "\n") {
			if l != "" {
				c.Fprint(&sb, prefix+l)
			}
		}
	}
	return sb.String()
}

// verifyData reads back len(data) bytes at addr page by page and compares them with data.
// Mismatching pages are collected into a multierror.
func verifyData(ctx context.Context, r common.MemReader, g common.Geometry, addr uint32, data []byte) error {
	nw := (len(data) + common.WordSize - 1) / common.WordSize
	if !g.Contains(addr, nw) {
		return errors.Trace(&common.OutOfRangeError{Addr: addr, NumWords: nw, Region: common.NewRegion(g.Base, g.End())})
	}
	var errs error
	for off := 0; off < len(data); {
		a := addr + uint32(off)
		n := int(g.PageAddr(g.PageIndex(a)) + g.PageSize - a)
		if n > len(data)-off {
			n = len(data) - off
		}
		want := data[off : off+n]
		got, err := readBytes(ctx, r, a, n)
		if err != nil {
			return errors.Trace(err)
		}
		if !bytes.Equal(want, got) {
			errs = multierror.Append(errs, &mismatchError{Addr: a, Want: want, Got: got})
		}
		off += n
	}
	return errs
}

func reportMismatches(err error) {
	me, ok := errors.Cause(err).(*multierror.Error)
	if !ok {
		return
	}
	for _, e := range me.Errors() {
		if mm, ok := e.(*mismatchError); ok {
			fmt.Fprintf(os.Stderr, "%s\n%s", mm, mm.Diff())
		}
	}
}

func verifyImage(ctx context.Context, t *target, addr uint32, data []byte) error {
	ourutil.Reportf("Verifying %d bytes @ 0x%08x...", len(data), addr)
	if err := verifyData(ctx, t.medium, t.profile.Geometry(), addr, data); err != nil {
		reportMismatches(err)
		return errors.Annotatef(err, "verification failed")
	}
	return nil
}

func verify(ctx context.Context) error {
	if flag.NArg() < 2 {
		return errors.Errorf("image file is required")
	}
	im, err := image.LoadFile(flag.Arg(1), loadOpts())
	if err != nil {
		return errors.Trace(err)
	}
	t, err := openTarget(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer t.Close()
	addr, err := imageAddr(t.profile, im, 2)
	if err != nil {
		return errors.Trace(err)
	}
	if err := verifyImage(ctx, t, addr, im.Data); err != nil {
		return errors.Trace(err)
	}
	reportOK("%s matches flash contents @ 0x%08x", im, addr)
	return nil
}
