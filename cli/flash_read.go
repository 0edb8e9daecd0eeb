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

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/iap/cli/ourutil"
	"github.com/mongoose-os/iap/common/ourio"
	"github.com/mongoose-os/iap/flash/common"
)

func flashRead(ctx context.Context) error {
	t, err := openTarget(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer t.Close()

	g := t.profile.Geometry()
	addr, length := g.Base, int(g.TotalSize)
	outFile := ""
	args := flag.Args()
	switch len(args) {
	case 2:
		// Whole flash.
		outFile = args[1]
	case 4:
		if addr, err = parseAddr(args[1]); err != nil {
			return errors.Trace(err)
		}
		if length, err = parseLength(args[2]); err != nil {
			return errors.Trace(err)
		}
		outFile = args[3]
	default:
		return errors.Errorf("invalid arguments")
	}

	data, err := readBytes(ctx, t.medium, addr, length)
	if err != nil {
		return errors.Trace(err)
	}
	if err := ourio.WriteOutput(outFile, data); err != nil {
		return errors.Trace(err)
	}
	if outFile != "-" {
		ourutil.Reportf("Wrote %d bytes from 0x%08x to %s", len(data), addr, outFile)
	}
	return nil
}

// readBytes reads length bytes at a word-aligned addr.
func readBytes(ctx context.Context, r common.MemReader, addr uint32, length int) ([]byte, error) {
	if addr%common.WordSize != 0 {
		return nil, errors.Trace(&common.MisalignedError{Addr: addr})
	}
	words, err := r.ReadWords(ctx, addr, (length+common.WordSize-1)/common.WordSize)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read %d bytes @ 0x%08x", length, addr)
	}
	return common.BytesFromWords(words)[:length], nil
}
