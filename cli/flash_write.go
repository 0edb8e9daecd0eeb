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

	"github.com/mongoose-os/iap/cli/flags"
	"github.com/mongoose-os/iap/cli/ourutil"
	"github.com/mongoose-os/iap/common/ourio"
	"github.com/mongoose-os/iap/flash/common"
	"github.com/mongoose-os/iap/flash/stager"
)

func flashWrite(ctx context.Context) error {
	args := flag.Args()
	if len(args) != 3 {
		return errors.Errorf("address and file are required")
	}
	addr, err := parseAddr(args[1])
	if err != nil {
		return errors.Trace(err)
	}
	tail, err := stager.ParseTailPolicy(*flags.Tail)
	if err != nil {
		return errors.Trace(err)
	}
	data, err := ourio.ReadInput(args[2])
	if err != nil {
		return errors.Trace(err)
	}
	words, err := toWords(data, tail)
	if err != nil {
		return errors.Trace(err)
	}

	t, err := openTarget(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer t.Close()

	ourutil.Reportf("Writing %d words @ 0x%08x...", len(words), addr)
	if err := t.newWriter().Write(ctx, addr, words); err != nil {
		return errors.Trace(err)
	}
	reportOK("Wrote %d bytes @ 0x%08x", len(words)*common.WordSize, addr)
	return nil
}

// toWords converts raw data to words, handling a trailing partial word according to tail.
func toWords(data []byte, tail stager.TailPolicy) ([]uint32, error) {
	if rem := len(data) % common.WordSize; rem != 0 {
		if tail != stager.TailZeroPad {
			return nil, errors.Trace(&common.IncompleteWordError{Trailing: rem})
		}
		data = append(data[:len(data):len(data)], make([]byte, common.WordSize-rem)...)
	}
	return common.WordsFromBytes(data), nil
}
