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
	"context"
	"fmt"
	"io"
	"os"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/mongoose-os/iap/cli/flags"
	"github.com/mongoose-os/iap/cli/ourutil"
	"github.com/mongoose-os/iap/flash/common"
	"github.com/mongoose-os/iap/flash/stager"
	"github.com/mongoose-os/iap/image"
)

func stage(ctx context.Context) error {
	if flag.NArg() < 2 {
		return errors.Errorf("image file is required")
	}
	tail, err := stager.ParseTailPolicy(*flags.Tail)
	if err != nil {
		return errors.Trace(err)
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

	ourutil.Reportf("Staging %s @ 0x%08x...", im, addr)
	res, err := stageImage(ctx, t, im, addr, tail)
	if err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Staged %d bytes in %d flushes, 0x%08x - 0x%08x, SHA256 %x", res.Bytes, res.Flushes, res.Addr, res.End, res.SHA256)

	if !*flags.NoVerify {
		if err := verifyImage(ctx, t, addr, stagedData(im.Data, tail)); err != nil {
			return errors.Trace(err)
		}
	}
	if *flags.Boot {
		return errors.Trace(attemptBoot(ctx, t, addr))
	}
	reportOK("Done")
	return nil
}

// progressReporter prints staging progress, in place when stderr is a terminal.
type progressReporter struct {
	w       io.Writer
	total   int64
	tty     bool
	lastPct int64
}

func newProgressReporter(total int64) *progressReporter {
	return &progressReporter{
		w:       os.Stderr,
		total:   total,
		tty:     term.IsTerminal(int(os.Stderr.Fd())),
		lastPct: -1,
	}
}

func (pr *progressReporter) report(f stager.Flush) {
	if pr.total == 0 {
		return
	}
	pct := f.BytesDone * 100 / pr.total
	switch {
	case pr.tty:
		fmt.Fprintf(pr.w, "\r  %d of %d bytes (%d%%)", f.BytesDone, pr.total, pct)
		if f.BytesDone >= pr.total {
			fmt.Fprintln(pr.w)
		}
	case pct/10 != pr.lastPct/10:
		ourutil.Freportf(pr.w, "  %d of %d bytes (%d%%)", f.BytesDone, pr.total, pct)
	}
	pr.lastPct = pct
}

func stageImage(ctx context.Context, t *target, im *image.Image, addr uint32, tail stager.TailPolicy) (*stager.Result, error) {
	pr := newProgressReporter(int64(len(im.Data)))
	st := stager.New(t.newWriter(),
		stager.WithBufferWords(*flags.BufferWords),
		stager.WithTailPolicy(tail),
		stager.WithProgress(pr.report),
	)
	res, err := st.Stage(ctx, im.Reader(), addr)
	if err != nil {
		if common.IsIncompleteWord(err) {
			return nil, errors.Annotatef(err, "image size is not a multiple of %d, use --tail=zero-pad", common.WordSize)
		}
		return nil, errors.Annotatef(err, "staging failed")
	}
	return res, nil
}

// stagedData returns the bytes the stager writes for data under the given tail policy.
func stagedData(data []byte, tail stager.TailPolicy) []byte {
	rem := len(data) % common.WordSize
	if rem == 0 || tail != stager.TailZeroPad {
		return data
	}
	return append(data[:len(data):len(data)], make([]byte, common.WordSize-rem)...)
}
